// ABOUTME: Positioned voice fed by a decoding pump goroutine
// ABOUTME: Buffers decoded mono audio in a ring buffer read by the mixer
package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio/decode"
	"github.com/charmbracelet/log"
	"github.com/smallnest/ringbuffer"
)

const (
	// pumpFrames is how many frames the pump decodes per ring write
	pumpFrames = 1024

	// pumpIdle is how long the pump waits when the ring is full
	pumpIdle = 5 * time.Millisecond

	// releaseTimeout bounds how long Release waits for the pump
	releaseTimeout = 2 * time.Second
)

// Voice is one positioned sound playing through the mixer
type Voice struct {
	id      uint64
	payload string
	stream  decode.Stream
	ring    *ringbuffer.RingBuffer
	logger  *log.Logger
	mixer   *Mixer

	mu       sync.Mutex
	position audio.Vec3
	gain     float32

	ended     atomic.Bool
	underruns atomic.Int64

	cancel      context.CancelFunc
	done        chan struct{}
	closeOnce   sync.Once
	releaseOnce sync.Once

	scratch []byte
}

func newVoice(id uint64, payload string, stream decode.Stream, ringBytes int, mixer *Mixer, logger *log.Logger) *Voice {
	minBytes := 2 * pumpFrames * 4
	if ringBytes < minBytes {
		ringBytes = minBytes
	}
	// Whole samples only
	ringBytes -= ringBytes % 4

	return &Voice{
		id:      id,
		payload: payload,
		stream:  stream,
		ring:    ringbuffer.New(ringBytes),
		logger:  logger,
		mixer:   mixer,
		gain:    1,
		done:    make(chan struct{}),
	}
}

// start launches the pump
func (v *Voice) start() {
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	go v.pump(ctx)
}

// pump decodes ahead of the mixer until the stream ends or the voice is released
func (v *Voice) pump(ctx context.Context) {
	defer close(v.done)
	defer v.closeStream()

	samples := make([]float32, pumpFrames)
	buf := make([]byte, pumpFrames*4)

	for {
		if v.ring.Free() < len(buf) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pumpIdle):
				continue
			}
		}

		n, err := v.stream.Read(samples)
		if n > 0 {
			for i, s := range samples[:n] {
				binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
			}
			if _, werr := v.ring.Write(buf[:n*4]); werr != nil && !errors.Is(werr, ringbuffer.ErrIsFull) {
				v.logger.Warn("Voice buffer write failed", "err", werr)
			}
		}

		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				v.logger.Warn("Voice stream failed", "payload", v.payload, "err", err)
			}
			v.ended.Store(true)
			return
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func (v *Voice) closeStream() {
	v.closeOnce.Do(func() {
		if err := v.stream.Close(); err != nil {
			v.logger.Debug("Stream close failed", "payload", v.payload, "err", err)
		}
	})
}

// read fills out with buffered mono samples and zero-fills the rest.
// It returns how many samples came from the buffer.
func (v *Voice) read(out []float32) int {
	need := len(out) * 4
	if cap(v.scratch) < need {
		v.scratch = make([]byte, need)
	}
	buf := v.scratch[:need]

	n, _ := v.ring.Read(buf)
	got := n / 4
	for i := 0; i < got; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	for i := got; i < len(out); i++ {
		out[i] = 0
	}

	if got < len(out) && !v.ended.Load() {
		v.underruns.Add(1)
	}
	return got
}

func (v *Voice) params() (audio.Vec3, float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.position, v.gain
}

// SetPosition moves the voice
func (v *Voice) SetPosition(p audio.Vec3) {
	v.mu.Lock()
	v.position = p
	v.mu.Unlock()
}

// SetGain sets the voice gain. Values are not clamped.
func (v *Voice) SetGain(g float32) {
	v.mu.Lock()
	v.gain = g
	v.mu.Unlock()
}

// Position returns the current position
func (v *Voice) Position() audio.Vec3 {
	p, _ := v.params()
	return p
}

// Gain returns the current gain
func (v *Voice) Gain() float32 {
	_, g := v.params()
	return g
}

// Payload returns the payload the voice was created from
func (v *Voice) Payload() string {
	return v.payload
}

// Buffered returns how many samples are waiting in the ring buffer
func (v *Voice) Buffered() int {
	return v.ring.Length() / 4
}

// Ended reports whether the stream has been fully decoded
func (v *Voice) Ended() bool {
	return v.ended.Load()
}

// Underruns returns how many render blocks found the buffer short
func (v *Voice) Underruns() int64 {
	return v.underruns.Load()
}

// Release stops the voice and frees its stream. Only the first call has effect.
func (v *Voice) Release() {
	v.releaseOnce.Do(func() {
		v.mixer.remove(v)
		v.cancel()

		select {
		case <-v.done:
		case <-time.After(releaseTimeout):
			// Pump is blocked in a read; closing the stream unblocks it
			v.logger.Warn("Voice pump did not stop in time, closing stream", "payload", v.payload)
			v.closeStream()
		}
	})
}
