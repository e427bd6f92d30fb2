// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Vec3 and sample conversion functions
// Package audio provides the shared types used by the spatial audio service.
//
// This package defines:
//   - Format: Describes a PCM stream (sample rate, channels)
//   - Vec3: A 3D vector used for source positions and listener orientation
//
// All decoded audio is carried as interleaved float32 samples in [-1, 1].
// Conversion helpers exist for the integer formats produced by decoders
// and consumed by output devices:
//   - int16 ↔ float32
//   - arbitrary bit depth integer → float32
//
// Example:
//
//	pos := audio.Vec3{1, 0, 0}
//	dist := pos.Sub(listener).Len()
//
//	f := audio.SampleFromInt16(sample16)
package audio
