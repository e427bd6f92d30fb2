// ABOUTME: Null audio output that renders without a device
// ABOUTME: Pulls from the Renderer on a ticker and discards the audio
package output

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Null output pulls audio in real time and discards it
type Null struct {
	config   Config
	logger   *log.Logger
	frames   atomic.Int64
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewNull creates a new Null output
func NewNull(config Config) *Null {
	return &Null{
		config: config,
		logger: config.Logger.WithPrefix("null"),
	}
}

func (n *Null) Name() string { return "null" }

// Open starts the render loop
func (n *Null) Open(sampleRate, channels int, r Renderer) error {
	period := n.config.bufferDuration()
	frames := framesFor(period, sampleRate)
	n.stopChan = make(chan struct{})

	n.wg.Add(1)
	go n.loop(period, make([]float32, frames*channels), r)

	n.logger.Info("Audio output initialized", "rate", sampleRate, "channels", channels, "period", period)
	return nil
}

func (n *Null) loop(period time.Duration, buf []float32, r Renderer) {
	defer n.wg.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	frames := int64(len(buf))
	for {
		select {
		case <-n.stopChan:
			return
		case <-ticker.C:
			r.Render(buf)
			n.frames.Add(frames)
		}
	}
}

// Samples returns how many samples have been rendered
func (n *Null) Samples() int64 {
	return n.frames.Load()
}

// Close stops the render loop
func (n *Null) Close() error {
	n.stopOnce.Do(func() {
		if n.stopChan != nil {
			close(n.stopChan)
		}
	})
	n.wg.Wait()
	return nil
}
