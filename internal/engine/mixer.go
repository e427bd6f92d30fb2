// ABOUTME: Stereo mixer over positioned voices
// ABOUTME: Applies attenuation, panning and gain, then sums and clips
package engine

import (
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
)

// Mixer renders all attached voices relative to the listener
type Mixer struct {
	mu       sync.RWMutex
	voices   map[uint64]*Voice
	listener ListenerState

	renders atomic.Int64

	// Render scratch, only touched by the output goroutine
	mono []float32
}

// NewMixer creates a mixer with the given listener
func NewMixer(listener ListenerState) *Mixer {
	return &Mixer{
		voices:   make(map[uint64]*Voice),
		listener: listener,
	}
}

func (m *Mixer) add(v *Voice) {
	m.mu.Lock()
	m.voices[v.id] = v
	m.mu.Unlock()
}

func (m *Mixer) remove(v *Voice) {
	m.mu.Lock()
	delete(m.voices, v.id)
	m.mu.Unlock()
}

func (m *Mixer) snapshot() []*Voice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	voices := make([]*Voice, 0, len(m.voices))
	for _, v := range m.voices {
		voices = append(voices, v)
	}
	return voices
}

// Len returns the number of attached voices
func (m *Mixer) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.voices)
}

// Listener returns a snapshot of the listener
func (m *Mixer) Listener() ListenerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listener
}

func (m *Mixer) setListener(l ListenerState) {
	m.mu.Lock()
	m.listener = l
	m.mu.Unlock()
}

func (m *Mixer) setOrientation(forward, up audio.Vec3) {
	m.mu.Lock()
	m.listener.Forward = forward
	m.listener.Up = up
	m.mu.Unlock()
}

// Renders returns how many blocks have been rendered
func (m *Mixer) Renders() int64 {
	return m.renders.Load()
}

// Render fills out with interleaved stereo frames
func (m *Mixer) Render(out []float32) {
	for i := range out {
		out[i] = 0
	}
	m.renders.Add(1)

	frames := len(out) / 2
	if cap(m.mono) < frames {
		m.mono = make([]float32, frames)
	}
	mono := m.mono[:frames]

	listener := m.Listener()
	for _, v := range m.snapshot() {
		if v.read(mono) == 0 {
			continue
		}
		position, gain := v.params()
		left, right := spatialize(listener, position, gain)
		for i, s := range mono {
			out[i*2] += s * left
			out[i*2+1] += s * right
		}
	}

	for i, s := range out {
		out[i] = audio.Clip(s)
	}
}
