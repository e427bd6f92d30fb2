// ABOUTME: Lazily opened audio engine handle
// ABOUTME: Opens the output device once and creates voices from payloads
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio/resample"
	"github.com/charmbracelet/log"
)

// ErrUnavailable is returned when the output device could not be opened
var ErrUnavailable = errors.New("audio engine unavailable")

// outputChannels is fixed: voices are panned into stereo
const outputChannels = 2

// Config configures the engine
type Config struct {
	// Backend names the output backend (oto, malgo, portaudio, null)
	Backend string

	SampleRate int

	// BufferMs is the decode-ahead buffer per voice
	BufferMs int

	// OutputBufferMs is the device buffer
	OutputBufferMs int

	DopplerFactor float32
	MetersPerUnit float32
	DistanceModel DistanceModel

	Decode decode.Config
	Logger *log.Logger
}

// Option customizes a Handle
type Option func(*Handle)

// WithOutput replaces the configured backend
func WithOutput(out output.Output) Option {
	return func(h *Handle) { h.out = out }
}

// WithOpener replaces the payload resolver
func WithOpener(opener decode.Opener) Option {
	return func(h *Handle) { h.opener = opener }
}

// Handle is the process-wide audio engine
type Handle struct {
	config   Config
	logger   *log.Logger
	opener   decode.Opener
	resolver *decode.Resolver
	out      output.Output
	mixer    *Mixer

	openOnce sync.Once
	openErr  error
	opened   bool

	closeOnce sync.Once
	closed    atomic.Bool
	nextID    atomic.Uint64
}

var errClosed = errors.New("engine closed")

// New creates a handle. The device is not opened until first use.
func New(config Config, opts ...Option) *Handle {
	if config.SampleRate == 0 {
		config.SampleRate = 48000
	}
	if config.BufferMs == 0 {
		config.BufferMs = 500
	}
	if config.OutputBufferMs == 0 {
		config.OutputBufferMs = 100
	}
	if config.MetersPerUnit == 0 {
		config.MetersPerUnit = 1
	}
	if config.DopplerFactor == 0 {
		config.DopplerFactor = 0.2
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Decode.Logger == nil {
		config.Decode.Logger = config.Logger
	}

	h := &Handle{
		config: config,
		logger: config.Logger.WithPrefix("engine"),
		mixer:  NewMixer(DefaultListener(config)),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.opener == nil {
		h.resolver = decode.NewResolver(config.Decode)
		h.opener = h.resolver
	}
	if h.out == nil {
		out, err := output.New(config.Backend, output.Config{
			BufferMs: config.OutputBufferMs,
			Logger:   config.Logger,
		})
		if err != nil {
			// Reported on first use, like any other open failure
			h.openErr = fmt.Errorf("%w: %w", ErrUnavailable, err)
			h.openOnce.Do(func() {})
		}
		h.out = out
	}
	return h
}

// open starts the output device on first use
func (h *Handle) open() error {
	h.openOnce.Do(func() {
		if err := h.out.Open(h.config.SampleRate, outputChannels, h.mixer); err != nil {
			h.openErr = fmt.Errorf("%w: %w", ErrUnavailable, err)
			h.logger.Error("Failed to open audio output", "backend", h.out.Name(), "err", err)
			return
		}
		h.opened = true
		h.logger.Info("Audio engine ready", "backend", h.out.Name(), "rate", h.config.SampleRate)
	})
	return h.openErr
}

// InitListener resets the listener to its defaults
func (h *Handle) InitListener() error {
	if err := h.open(); err != nil {
		return err
	}
	h.mixer.setListener(DefaultListener(h.config))
	return nil
}

// SetOrientation sets the listener's forward and up vectors
func (h *Handle) SetOrientation(forward, up audio.Vec3) error {
	if err := h.open(); err != nil {
		return err
	}
	h.mixer.setOrientation(forward, up)
	return nil
}

// Listener returns a snapshot of the listener
func (h *Handle) Listener() ListenerState {
	return h.mixer.Listener()
}

// NewVoice decodes payload and starts playing it at the origin
func (h *Handle) NewVoice(ctx context.Context, payload string) (*Voice, error) {
	if err := h.open(); err != nil {
		return nil, err
	}
	if h.closed.Load() {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, errClosed)
	}

	stream, err := h.opener.Open(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload %q: %w", payload, err)
	}

	native := stream.Format()
	stream = resample.New(resample.ToMono(stream), h.config.SampleRate)

	ringBytes := h.config.SampleRate * h.config.BufferMs / 1000 * 4
	v := newVoice(h.nextID.Add(1), payload, stream, ringBytes, h.mixer, h.logger)
	v.start()
	h.mixer.add(v)

	// Close may have swept the mixer while the payload was opening
	if h.closed.Load() {
		v.Release()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, errClosed)
	}

	h.logger.Debug("Voice started", "payload", payload, "rate", native.SampleRate, "channels", native.Channels)
	return v, nil
}

// ActiveVoices returns the number of voices attached to the mixer
func (h *Handle) ActiveVoices() int {
	return h.mixer.Len()
}

// Underruns sums buffer underruns across active voices
func (h *Handle) Underruns() int64 {
	var total int64
	for _, v := range h.mixer.snapshot() {
		total += v.Underruns()
	}
	return total
}

// CachedClips returns the number of decoded clips held in memory
func (h *Handle) CachedClips() int {
	if h.resolver == nil || h.resolver.Clips() == nil {
		return 0
	}
	return h.resolver.Clips().Len()
}

// Backend names the output backend in use
func (h *Handle) Backend() string {
	if h.out == nil {
		return h.config.Backend
	}
	return h.out.Name()
}

// Close releases every voice and the output device
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		// Later calls must not open a device that is being torn down
		h.openOnce.Do(func() { h.openErr = fmt.Errorf("%w: %w", ErrUnavailable, errClosed) })

		for _, v := range h.mixer.snapshot() {
			v.Release()
		}
		if h.opened {
			if cerr := h.out.Close(); cerr != nil {
				err = fmt.Errorf("failed to close output: %w", cerr)
			}
		}
	})
	return err
}
