// ABOUTME: Positional audio engine package
// ABOUTME: Owns the output device, the listener and the voices it mixes
// Package engine renders positioned mono voices to a stereo output device.
//
// The device is opened lazily, exactly once, on the first call that needs
// it. A failed open is remembered and every later call reports
// ErrUnavailable.
package engine
