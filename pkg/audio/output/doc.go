// ABOUTME: Audio output package for playing mixed audio
// ABOUTME: Provides pull-based Output backends for oto, malgo, PortAudio and a null sink
// Package output drives an audio device from a Renderer.
//
// Backends pull interleaved float32 frames from the Renderer on their
// own schedule. The null backend pulls on a timer so rendering can run
// on machines without a sound card.
//
// Example:
//
//	out, err := output.New("oto", output.Config{BufferMs: 100})
//	err = out.Open(48000, 2, mixer)
//	defer out.Close()
package output
