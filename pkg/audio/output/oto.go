// ABOUTME: Oto-based audio output implementation
// ABOUTME: Feeds an oto player from a Renderer through an io.Reader
package output

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, so it is shared across opens
var (
	otoMu      sync.Mutex
	otoCtx     *oto.Context
	otoRate    int
	otoChannel int
)

// Oto output implementation using oto library
type Oto struct {
	config Config
	logger *log.Logger
	player *oto.Player
	reader *renderReader
}

// NewOto creates a new Oto output
func NewOto(config Config) *Oto {
	return &Oto{
		config: config,
		logger: config.Logger.WithPrefix("oto"),
	}
}

func (o *Oto) Name() string { return "oto" }

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int, r Renderer) error {
	ctx, err := sharedOtoContext(sampleRate, channels, o.config)
	if err != nil {
		return err
	}

	o.reader = &renderReader{renderer: r, channels: channels}
	o.player = ctx.NewPlayer(o.reader)
	o.player.SetBufferSize(framesFor(o.config.bufferDuration(), sampleRate) * channels * 4)
	o.player.Play()

	o.logger.Info("Audio output initialized", "rate", sampleRate, "channels", channels, "buffer_ms", o.config.BufferMs)
	return nil
}

func sharedOtoContext(sampleRate, channels int, config Config) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoRate != sampleRate || otoChannel != channels {
			return nil, fmt.Errorf("oto context already running at %dHz %dch, cannot switch to %dHz %dch",
				otoRate, otoChannel, sampleRate, channels)
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   config.bufferDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	otoCtx = ctx
	otoRate = sampleRate
	otoChannel = channels
	return ctx, nil
}

// Close releases output resources
func (o *Oto) Close() error {
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			o.logger.Warn("Player close failed", "err", err)
		}
		o.player = nil
	}

	otoMu.Lock()
	defer otoMu.Unlock()
	if otoCtx != nil {
		if err := otoCtx.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend oto context: %w", err)
		}
	}
	return nil
}

// renderReader adapts a Renderer to the byte stream oto pulls
type renderReader struct {
	renderer Renderer
	channels int
	scratch  []float32
}

func (r *renderReader) Read(p []byte) (int, error) {
	frameBytes := r.channels * 4
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	samples := frames * r.channels
	if cap(r.scratch) < samples {
		r.scratch = make([]float32, samples)
	}
	buf := r.scratch[:samples]
	r.renderer.Render(buf)
	encodeFloat32LE(p, buf)
	return frames * frameBytes, nil
}
