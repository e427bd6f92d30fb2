// ABOUTME: Audio output interface definition
// ABOUTME: Common interface and backend selection for playback devices
package output

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ErrUnknownBackend is returned by New for an unrecognized backend name
var ErrUnknownBackend = errors.New("unknown audio backend")

// Renderer produces audio on demand
type Renderer interface {
	// Render fills out with interleaved float32 frames. It must fill the
	// whole slice, writing silence when nothing is playing.
	Render(out []float32)
}

// Output represents an audio output device
type Output interface {
	// Open initializes the device and starts pulling from r
	Open(sampleRate, channels int, r Renderer) error

	// Close stops pulling and releases the device
	Close() error

	// Name identifies the backend
	Name() string
}

// Config configures a backend
type Config struct {
	// BufferMs is the device buffer length in milliseconds
	BufferMs int

	Logger *log.Logger
}

// Backends lists the names accepted by New
var Backends = []string{"oto", "malgo", "portaudio", "null"}

// New creates the named backend
func New(backend string, config Config) (Output, error) {
	if config.BufferMs <= 0 {
		config.BufferMs = 100
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	switch strings.ToLower(backend) {
	case "", "oto":
		return NewOto(config), nil
	case "malgo":
		return NewMalgo(config), nil
	case "portaudio":
		return NewPortAudio(config), nil
	case "null", "none":
		return NewNull(config), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

func (c Config) bufferDuration() time.Duration {
	return time.Duration(c.BufferMs) * time.Millisecond
}

// framesFor returns the frame count covering d at sampleRate
func framesFor(d time.Duration, sampleRate int) int {
	frames := int(int64(sampleRate) * int64(d) / int64(time.Second))
	if frames < 1 {
		frames = 1
	}
	return frames
}

// encodeFloat32LE writes samples into dst as little-endian IEEE floats
func encodeFloat32LE(dst []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
	}
}
