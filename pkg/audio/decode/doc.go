// ABOUTME: Audio decoder package for payload resolution
// ABOUTME: Turns a payload string into a float32 PCM stream
// Package decode resolves sound-source payloads into PCM streams.
//
// A payload is a string naming audio content:
//   - tone:<hz>           synthetic sine tone (tone: alone plays 440Hz)
//   - http(s)://...       network stream (MP3, Ogg Vorbis, anything else via ffmpeg)
//   - a local file path   .mp3, .flac, .wav, .ogg, anything else via ffmpeg
//
// All streams implement the Stream interface and produce interleaved
// float32 samples in [-1, 1] at the stream's native format. Local files
// loop on EOF when the Resolver is configured to do so; small local files
// are decoded once and served from an in-memory clip cache.
//
// Example:
//
//	r := decode.NewResolver(decode.Config{LoopFiles: true})
//	stream, err := r.Open(ctx, "/sounds/engine.ogg")
//	n, err := stream.Read(samples)
package decode
