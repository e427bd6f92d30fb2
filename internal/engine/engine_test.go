// ABOUTME: Tests for the audio engine handle, voices and mixer
// ABOUTME: Uses a fake output and opener so no device is needed
package engine

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio/output"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeOutput records opens and never pulls, so tests drive Render directly
type fakeOutput struct {
	opens   atomic.Int32
	closes  atomic.Int32
	openErr error
}

func (f *fakeOutput) Open(sampleRate, channels int, r output.Renderer) error {
	f.opens.Add(1)
	return f.openErr
}

func (f *fakeOutput) Close() error {
	f.closes.Add(1)
	return nil
}

func (f *fakeOutput) Name() string { return "fake" }

// trackedStream wraps a stream and records Close
type trackedStream struct {
	decode.Stream
	closed atomic.Bool
}

func (s *trackedStream) Close() error {
	s.closed.Store(true)
	return s.Stream.Close()
}

// constOpener plays a looping constant-valued mono clip
type constOpener struct {
	value float32
	rate  int

	mu      sync.Mutex
	streams []*trackedStream
}

func (o *constOpener) Open(ctx context.Context, payload string) (decode.Stream, error) {
	if payload == "missing" {
		return nil, decode.ErrNotFound
	}
	rate := o.rate
	if rate == 0 {
		rate = 48000
	}
	samples := make([]float32, 4800)
	for i := range samples {
		samples[i] = o.value
	}
	clip := &decode.Clip{Samples: samples, Format: audio.Format{SampleRate: rate, Channels: 1}}
	s := &trackedStream{Stream: clip.Stream(true)}

	o.mu.Lock()
	o.streams = append(o.streams, s)
	o.mu.Unlock()
	return s, nil
}

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newTestHandle(t *testing.T, opener decode.Opener) (*Handle, *fakeOutput) {
	t.Helper()
	out := &fakeOutput{}
	h := New(Config{Logger: testLogger()}, WithOutput(out), WithOpener(opener))
	t.Cleanup(func() { h.Close() })
	return h, out
}

func newBufferedVoice(t *testing.T, h *Handle, frames int) *Voice {
	t.Helper()
	v, err := h.NewVoice(context.Background(), "tone")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return v.Buffered() >= frames }, 2*time.Second, time.Millisecond)
	return v
}

func TestHandleOpensLazilyOnce(t *testing.T) {
	h, out := newTestHandle(t, &constOpener{value: 0.1})
	assert.Equal(t, int32(0), out.opens.Load())

	require.NoError(t, h.InitListener())
	require.NoError(t, h.SetOrientation(audio.Vec3{0, 0, 1}, audio.Vec3{0, 1, 0}))
	v, err := h.NewVoice(context.Background(), "a")
	require.NoError(t, err)
	defer v.Release()

	assert.Equal(t, int32(1), out.opens.Load())
	assert.Equal(t, "fake", h.Backend())
}

func TestHandleOpenFailureIsSticky(t *testing.T) {
	out := &fakeOutput{openErr: errors.New("no device")}
	h := New(Config{Logger: testLogger()}, WithOutput(out), WithOpener(&constOpener{}))
	defer h.Close()

	err := h.InitListener()
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "no device")

	_, err = h.NewVoice(context.Background(), "a")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, h.SetOrientation(audio.Vec3{}, audio.Vec3{}), ErrUnavailable)
	assert.Equal(t, int32(1), out.opens.Load())

	require.NoError(t, h.Close())
	assert.Equal(t, int32(0), out.closes.Load())
}

func TestHandleUnknownBackend(t *testing.T) {
	h := New(Config{Backend: "bogus", Logger: testLogger()}, WithOpener(&constOpener{}))
	defer h.Close()

	err := h.InitListener()
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, output.ErrUnknownBackend)
}

func TestDefaultListener(t *testing.T) {
	h, _ := newTestHandle(t, &constOpener{})
	require.NoError(t, h.InitListener())

	l := h.Listener()
	assert.Equal(t, audio.Vec3{0, 0, 0}, l.Position)
	assert.Equal(t, audio.Vec3{0, 0, 0}, l.Velocity)
	assert.Equal(t, audio.Vec3{0, 0, 1}, l.Forward)
	assert.Equal(t, audio.Vec3{0, 1, 0}, l.Up)
	assert.Equal(t, float32(1), l.MetersPerUnit)
	assert.Equal(t, DistanceInverse, l.DistanceModel)
	assert.Equal(t, float32(0.2), l.DopplerFactor)
}

func TestSetOrientationOnlyChangesOrientation(t *testing.T) {
	h, _ := newTestHandle(t, &constOpener{})
	require.NoError(t, h.InitListener())

	require.NoError(t, h.SetOrientation(audio.Vec3{1, 0, 0}, audio.Vec3{0, 0, 1}))
	l := h.Listener()
	assert.Equal(t, audio.Vec3{1, 0, 0}, l.Forward)
	assert.Equal(t, audio.Vec3{0, 0, 1}, l.Up)
	assert.Equal(t, audio.Vec3{0, 0, 0}, l.Position)
	assert.Equal(t, float32(0.2), l.DopplerFactor)
}

func TestNewVoiceOpenError(t *testing.T) {
	h, _ := newTestHandle(t, &constOpener{})

	_, err := h.NewVoice(context.Background(), "missing")
	assert.ErrorIs(t, err, decode.ErrNotFound)
	assert.Equal(t, 0, h.ActiveVoices())
}

func TestVoiceRenderCentered(t *testing.T) {
	h, _ := newTestHandle(t, &constOpener{value: 0.5})
	require.NoError(t, h.InitListener())

	v := newBufferedVoice(t, h, 256)
	v.SetPosition(audio.Vec3{0, 0, 1})

	out := make([]float32, 256*2)
	h.mixer.Render(out)

	want := 0.5 * float32(math.Sqrt(0.5))
	assert.InDelta(t, want, out[0], 1e-4)
	assert.InDelta(t, want, out[1], 1e-4)
	assert.InDelta(t, want, out[510], 1e-4)
}

func TestVoiceRenderPanned(t *testing.T) {
	tests := []struct {
		name        string
		position    audio.Vec3
		left, right float32
	}{
		// Facing +Z with +Y up puts -X on the right
		{"right", audio.Vec3{-1, 0, 0}, 0, 0.5},
		{"left", audio.Vec3{1, 0, 0}, 0.5, 0},
		{"far right", audio.Vec3{-2, 0, 0}, 0, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandle(t, &constOpener{value: 0.5})
			require.NoError(t, h.InitListener())

			v := newBufferedVoice(t, h, 64)
			v.SetPosition(tt.position)

			out := make([]float32, 64*2)
			h.mixer.Render(out)
			assert.InDelta(t, tt.left, out[0], 1e-4)
			assert.InDelta(t, tt.right, out[1], 1e-4)
		})
	}
}

func TestVoiceGain(t *testing.T) {
	h, _ := newTestHandle(t, &constOpener{value: 0.5})
	require.NoError(t, h.InitListener())

	v := newBufferedVoice(t, h, 128)
	v.SetGain(0)
	assert.Equal(t, float32(0), v.Gain())

	out := make([]float32, 64*2)
	h.mixer.Render(out)
	assert.Equal(t, float32(0), out[0])

	v.SetGain(2)
	h.mixer.Render(out)
	assert.InDelta(t, 2*0.5*math.Sqrt(0.5), out[0], 1e-4)
}

func TestMixerClips(t *testing.T) {
	h, _ := newTestHandle(t, &constOpener{value: 1})
	require.NoError(t, h.InitListener())

	newBufferedVoice(t, h, 64)
	newBufferedVoice(t, h, 64)

	out := make([]float32, 64*2)
	h.mixer.Render(out)
	assert.Equal(t, float32(1), out[0])
	assert.Equal(t, float32(1), out[1])
}

func TestVoiceResampled(t *testing.T) {
	h, _ := newTestHandle(t, &constOpener{value: 0.25, rate: 22050})
	require.NoError(t, h.InitListener())

	v := newBufferedVoice(t, h, 128)
	out := make([]float32, 128*2)
	h.mixer.Render(out)
	assert.InDelta(t, 0.25*math.Sqrt(0.5), out[100], 1e-4)
	assert.Equal(t, "tone", v.Payload())
}

func TestVoiceReleaseDetachesAndCloses(t *testing.T) {
	opener := &constOpener{value: 0.5}
	h, _ := newTestHandle(t, opener)

	v, err := h.NewVoice(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, h.ActiveVoices())

	v.Release()
	v.Release()
	assert.Equal(t, 0, h.ActiveVoices())

	opener.mu.Lock()
	defer opener.mu.Unlock()
	require.Len(t, opener.streams, 1)
	assert.True(t, opener.streams[0].closed.Load())
}

func TestVoiceUnderrun(t *testing.T) {
	h, _ := newTestHandle(t, &constOpener{value: 0.5})
	v := newBufferedVoice(t, h, 1)
	v.Release()

	// Released voices are no longer mixed, so read directly
	out := make([]float32, v.Buffered()+16)
	got := v.read(out)
	assert.Less(t, got, len(out))
	assert.Equal(t, float32(0), out[len(out)-1])
	assert.Equal(t, int64(1), v.Underruns())
}

func TestHandleCloseReleasesVoices(t *testing.T) {
	out := &fakeOutput{}
	h := New(Config{Logger: testLogger()}, WithOutput(out), WithOpener(&constOpener{}))

	for i := 0; i < 3; i++ {
		_, err := h.NewVoice(context.Background(), "a")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, h.ActiveVoices())

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.Equal(t, 0, h.ActiveVoices())
	assert.Equal(t, int32(1), out.closes.Load())

	_, err := h.NewVoice(context.Background(), "a")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAttenuation(t *testing.T) {
	tests := []struct {
		model DistanceModel
		d     float64
		want  float64
	}{
		{DistanceInverse, 0.5, 1},
		{DistanceInverse, 1, 1},
		{DistanceInverse, 2, 0.5},
		{DistanceInverse, 4, 0.25},
		{DistanceLinear, 1, 1},
		{DistanceLinear, 50.5, 0.5},
		{DistanceLinear, 500, 0},
		{DistanceExponent, 2, 0.5},
		{DistanceExponent, 10, 0.1},
		{DistanceNone, 1000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.model.String(), func(t *testing.T) {
			assert.InDelta(t, tt.want, attenuation(tt.model, tt.d), 1e-9)
		})
	}
}

func TestPanningEqualPower(t *testing.T) {
	for _, pan := range []float64{-1, -0.5, 0, 0.3, 1} {
		l, r := panning(pan)
		assert.InDelta(t, 1, l*l+r*r, 1e-9)
	}
	l, r := panning(-1)
	assert.Equal(t, 1.0, l)
	assert.Equal(t, 0.0, r)
}

func TestSpatializeMetersPerUnit(t *testing.T) {
	l := DefaultListener(Config{MetersPerUnit: 2})
	left, right := spatialize(l, audio.Vec3{0, 0, 2}, 1)

	// Two units at two meters per unit is four meters
	assert.InDelta(t, 0.25*math.Sqrt(0.5), left, 1e-6)
	assert.InDelta(t, left, right, 1e-6)
}

func TestSpatializeDegenerateOrientation(t *testing.T) {
	l := DefaultListener(Config{MetersPerUnit: 1})
	l.Up = l.Forward

	left, right := spatialize(l, audio.Vec3{-1, 0, 0}, 1)
	assert.InDelta(t, left, right, 1e-6)
}

func TestParseDistanceModel(t *testing.T) {
	m, err := ParseDistanceModel("Linear")
	require.NoError(t, err)
	assert.Equal(t, DistanceLinear, m)

	m, err = ParseDistanceModel("")
	require.NoError(t, err)
	assert.Equal(t, DistanceInverse, m)

	_, err = ParseDistanceModel("cubic")
	assert.Error(t, err)
}
