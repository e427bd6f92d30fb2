// ABOUTME: Tests for the source registry
// ABOUTME: Uses a fake engine that counts live voices
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBadPayload = errors.New("bad payload")

type fakeVoice struct {
	engine   *fakeEngine
	payload  string
	mu       sync.Mutex
	position audio.Vec3
	gain     float32
	releases atomic.Int32
}

func (v *fakeVoice) SetPosition(p audio.Vec3) {
	v.mu.Lock()
	v.position = p
	v.mu.Unlock()
}

func (v *fakeVoice) SetGain(g float32) {
	v.mu.Lock()
	v.gain = g
	v.mu.Unlock()
}

func (v *fakeVoice) Release() {
	if v.releases.Add(1) == 1 {
		v.engine.live.Add(-1)
	}
}

type fakeEngine struct {
	live   atomic.Int32
	mu     sync.Mutex
	voices []*fakeVoice
}

func (e *fakeEngine) newVoice(ctx context.Context, payload string) (Playback, error) {
	if payload == "bad" {
		return nil, errBadPayload
	}
	v := &fakeVoice{engine: e, payload: payload, gain: 1}
	e.live.Add(1)
	e.mu.Lock()
	e.voices = append(e.voices, v)
	e.mu.Unlock()
	return v, nil
}

func newTestRegistry() (*Registry, *fakeEngine) {
	engine := &fakeEngine{}
	r := New(Config{
		NewVoice: engine.newVoice,
		Logger:   log.NewWithOptions(io.Discard, log.Options{}),
	})
	return r, engine
}

func TestCreateEchoesID(t *testing.T) {
	r, engine := newTestRegistry()

	id, err := r.Create(context.Background(), "boom.ogg", "abc12345")
	require.NoError(t, err)
	assert.Equal(t, "abc12345", id)
	assert.Equal(t, []string{"abc12345"}, r.List())
	assert.Equal(t, int32(1), engine.live.Load())
}

func TestCreateOverwriteReleasesPrevious(t *testing.T) {
	r, engine := newTestRegistry()
	ctx := context.Background()

	_, err := r.Create(ctx, "a.ogg", "x")
	require.NoError(t, err)
	_, err = r.Create(ctx, "b.ogg", "x")
	require.NoError(t, err)

	assert.Equal(t, []string{"x"}, r.List())
	assert.Equal(t, int32(1), engine.live.Load())

	engine.mu.Lock()
	defer engine.mu.Unlock()
	require.Len(t, engine.voices, 2)
	assert.Equal(t, int32(1), engine.voices[0].releases.Load())
	assert.Equal(t, int32(0), engine.voices[1].releases.Load())
	assert.Equal(t, "b.ogg", r.Snapshot()[0].Payload)
}

func TestCreateErrorLeavesRegistryUntouched(t *testing.T) {
	r, engine := newTestRegistry()
	ctx := context.Background()

	_, err := r.Create(ctx, "a.ogg", "x")
	require.NoError(t, err)

	_, err = r.Create(ctx, "bad", "x")
	assert.ErrorIs(t, err, errBadPayload)
	assert.Equal(t, "a.ogg", r.Snapshot()[0].Payload)
	assert.Equal(t, int32(1), engine.live.Load())

	_, err = r.Create(ctx, "bad", "y")
	assert.Error(t, err)
	assert.Equal(t, []string{"x"}, r.List())
}

func TestDestroy(t *testing.T) {
	r, engine := newTestRegistry()

	assert.False(t, r.Destroy("nope"))

	_, err := r.Create(context.Background(), "a.ogg", "x")
	require.NoError(t, err)
	assert.True(t, r.Destroy("x"))
	assert.False(t, r.Destroy("x"))
	assert.Empty(t, r.List())
	assert.Equal(t, int32(0), engine.live.Load())
}

func TestStaleUpdatesAreIgnored(t *testing.T) {
	r, engine := newTestRegistry()

	assert.NotPanics(t, func() {
		r.SetPosition("ghost", 1, 2, 3)
		r.SetGain("ghost", 0.5)
	})
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, int32(0), engine.live.Load())
}

func TestUpdatesReachVoice(t *testing.T) {
	r, engine := newTestRegistry()
	_, err := r.Create(context.Background(), "a.ogg", "x")
	require.NoError(t, err)

	r.SetPosition("x", 1, -2, 3.5)
	r.SetGain("x", 7)

	v := engine.voices[0]
	v.mu.Lock()
	assert.Equal(t, audio.Vec3{1, -2, 3.5}, v.position)
	assert.Equal(t, float32(7), v.gain)
	v.mu.Unlock()

	info := r.Snapshot()[0]
	assert.Equal(t, audio.Vec3{1, -2, 3.5}, info.Position)
	assert.Equal(t, float32(7), info.Gain)
}

func TestListSortedAndFormatted(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	assert.Equal(t, "[]", FormatList(r.List()))

	for _, id := range []string{"b", "c", "a"} {
		_, err := r.Create(ctx, "p", id)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c"}, r.List())
	assert.Equal(t, "[a,b,c]", FormatList(r.List()))
}

func TestClearAll(t *testing.T) {
	r, engine := newTestRegistry()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := r.Create(ctx, "p", fmt.Sprintf("id%d", i))
		require.NoError(t, err)
	}

	assert.Equal(t, 5, r.ClearAll())
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, int32(0), engine.live.Load())
	assert.Equal(t, 0, r.ClearAll())
}

func TestSourceReleaseOnce(t *testing.T) {
	engine := &fakeEngine{}
	voice, err := engine.newVoice(context.Background(), "p")
	require.NoError(t, err)

	src := newSource("x", "p", voice, time.Now())
	src.Release()
	src.Release()
	assert.Equal(t, int32(1), voice.(*fakeVoice).releases.Load())
}

func TestConcurrentMutation(t *testing.T) {
	r, engine := newTestRegistry()
	ctx := context.Background()
	ids := []string{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := ids[(w+i)%len(ids)]
				switch i % 6 {
				case 0:
					_, _ = r.Create(ctx, "p", id)
				case 1:
					r.SetPosition(id, float32(i), 0, 0)
				case 2:
					r.SetGain(id, float32(w))
				case 3:
					r.Destroy(id)
				case 4:
					_ = r.List()
				case 5:
					if w == 0 {
						r.ClearAll()
					}
				}
			}
		}(w)
	}
	wg.Wait()

	// Every live voice is in the registry and nothing else is
	assert.Equal(t, int32(r.Len()), engine.live.Load())

	r.ClearAll()
	assert.Equal(t, int32(0), engine.live.Load())

	engine.mu.Lock()
	defer engine.mu.Unlock()
	for _, v := range engine.voices {
		assert.Equal(t, int32(1), v.releases.Load())
	}
}
