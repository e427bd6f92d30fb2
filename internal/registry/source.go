// ABOUTME: Sound source owning one engine voice
// ABOUTME: Forwards position and gain and releases the voice exactly once
package registry

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
)

// Playback is the engine object a source drives
type Playback interface {
	SetPosition(p audio.Vec3)
	SetGain(g float32)
	Release()
}

// Source is one playing, positioned payload
type Source struct {
	ID        string
	Payload   string
	CreatedAt time.Time

	voice Playback

	mu       sync.Mutex
	position audio.Vec3
	gain     float32

	releaseOnce sync.Once
}

func newSource(id, payload string, voice Playback, now time.Time) *Source {
	return &Source{
		ID:        id,
		Payload:   payload,
		CreatedAt: now,
		voice:     voice,
		gain:      1,
	}
}

// SetPosition moves the source
func (s *Source) SetPosition(p audio.Vec3) {
	s.mu.Lock()
	s.position = p
	s.mu.Unlock()
	s.voice.SetPosition(p)
}

// SetGain sets the source gain without clamping
func (s *Source) SetGain(g float32) {
	s.mu.Lock()
	s.gain = g
	s.mu.Unlock()
	s.voice.SetGain(g)
}

// Info returns a snapshot of the source
func (s *Source) Info() SourceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SourceInfo{
		ID:        s.ID,
		Payload:   s.Payload,
		Position:  s.position,
		Gain:      s.gain,
		CreatedAt: s.CreatedAt,
	}
}

// Release stops playback. Only the first call has effect.
func (s *Source) Release() {
	s.releaseOnce.Do(s.voice.Release)
}

// SourceInfo describes a source for monitoring
type SourceInfo struct {
	ID        string
	Payload   string
	Position  audio.Vec3
	Gain      float32
	CreatedAt time.Time
}
