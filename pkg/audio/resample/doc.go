// ABOUTME: Stream format conversion using linear interpolation
// ABOUTME: Converts decoded streams to the engine sample rate and channel layout
// Package resample converts decoded streams to the format the mixer renders.
//
// Uses linear interpolation between adjacent frames, carrying the last
// frame of each chunk into the next so chunk boundaries do not click.
// Handles both upsampling and downsampling.
//
// Example:
//
//	mono := resample.ToMono(stream)
//	out := resample.New(mono, 48000)
//	n, err := out.Read(samples)
package resample
