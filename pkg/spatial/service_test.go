// ABOUTME: End-to-end tests for the spatial service
// ABOUTME: Runs real tone voices through the null output backend
package spatial

import (
	"context"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/internal/engine"
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

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newTestService(t *testing.T, silence time.Duration) *Service {
	t.Helper()
	logger := quietLogger()
	svc, err := New(Config{
		Engine: engine.Config{Logger: logger},
		EngineOptions: []engine.Option{
			engine.WithOutput(output.NewNull(output.Config{BufferMs: 10, Logger: logger})),
		},
		Tick:    10 * time.Millisecond,
		Silence: silence,
		Logger:  logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

type failingOutput struct{}

func (failingOutput) Open(int, int, output.Renderer) error { return errors.New("no sound card") }
func (failingOutput) Close() error                         { return nil }
func (failingOutput) Name() string                         { return "failing" }

func TestNewFailsWhenEngineUnavailable(t *testing.T) {
	_, err := New(Config{
		EngineOptions: []engine.Option{engine.WithOutput(failingOutput{})},
		Logger:        quietLogger(),
	})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewAppliesListenerDefaults(t *testing.T) {
	svc := newTestService(t, time.Hour)

	st := svc.Status()
	assert.Equal(t, "null", st.Backend)
	assert.Equal(t, audio.Vec3{0, 0, 1}, st.Listener.Forward)
	assert.Equal(t, audio.Vec3{0, 1, 0}, st.Listener.Up)
	assert.Equal(t, engine.DistanceInverse, st.Listener.DistanceModel)
	assert.Equal(t, float32(0.2), st.Listener.DopplerFactor)
	assert.False(t, st.Armed)
}

func TestIDFormat(t *testing.T) {
	svc := newTestService(t, time.Hour)
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]{8}$`), svc.ID())
}

func TestEndToEnd(t *testing.T) {
	svc := newTestService(t, time.Hour)
	ctx := context.Background()

	svc.Start()
	assert.Equal(t, "[]", svc.List())

	id := svc.ID()
	got, err := svc.Create(ctx, "tone:440", id)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, "["+id+"]", svc.List())

	svc.Pos(id, 3, 0, 4)
	svc.Gain(id, 0.5)
	require.NoError(t, svc.Orientation(1, 0, 0, 0, 1, 0))

	st := svc.Status()
	require.Len(t, st.Sources, 1)
	assert.Equal(t, audio.Vec3{3, 0, 4}, st.Sources[0].Position)
	assert.Equal(t, float32(0.5), st.Sources[0].Gain)
	assert.Equal(t, "tone:440", st.Sources[0].Payload)
	assert.Equal(t, audio.Vec3{1, 0, 0}, st.Listener.Forward)
	assert.Equal(t, 1, st.Voices)
	assert.True(t, st.Armed)

	assert.True(t, svc.Destroy(id))
	assert.False(t, svc.Destroy(id))
	assert.Equal(t, "[]", svc.List())
	assert.Equal(t, 0, svc.ActiveVoices())
}

func TestCreateOverwriteKeepsOneVoice(t *testing.T) {
	svc := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.Create(ctx, "tone:440", "dup")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "tone:880", "dup")
	require.NoError(t, err)

	assert.Equal(t, "[dup]", svc.List())
	assert.Equal(t, 1, svc.ActiveVoices())
	assert.Equal(t, "tone:880", svc.Status().Sources[0].Payload)
}

func TestCreateMissingPayload(t *testing.T) {
	svc := newTestService(t, time.Hour)

	_, err := svc.Create(context.Background(), "/definitely/not/here.ogg", "x")
	assert.ErrorIs(t, err, decode.ErrNotFound)
	assert.Equal(t, "[]", svc.List())
}

func TestStaleIDsAreSilent(t *testing.T) {
	svc := newTestService(t, time.Hour)

	svc.Pos("ghost", 1, 1, 1)
	svc.Gain("ghost", 2)
	assert.False(t, svc.Destroy("ghost"))
	assert.Equal(t, "[]", svc.List())
}

func TestSilenceClearsSources(t *testing.T) {
	svc := newTestService(t, 50*time.Millisecond)
	ctx := context.Background()

	svc.Start()
	for _, id := range []string{"a", "b"} {
		_, err := svc.Create(ctx, "tone:220", id)
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return svc.List() == "[]" }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, svc.ActiveVoices())
}

func TestHeartbeatKeepsSources(t *testing.T) {
	svc := newTestService(t, 100*time.Millisecond)

	svc.Start()
	_, err := svc.Create(context.Background(), "tone:220", "a")
	require.NoError(t, err)

	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		svc.Heartbeat()
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, "[a]", svc.List())
}

func TestWithoutStartNothingExpires(t *testing.T) {
	svc := newTestService(t, 10*time.Millisecond)

	_, err := svc.Create(context.Background(), "tone:220", "a")
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "[a]", svc.List())
}

func TestConcurrentCalls(t *testing.T) {
	svc := newTestService(t, time.Hour)
	ctx := context.Background()
	svc.Start()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := []string{"a", "b"}[w%2]
			for i := 0; i < 20; i++ {
				_, _ = svc.Create(ctx, "tone:330", id)
				svc.Pos(id, float32(i), 0, 0)
				svc.Heartbeat()
				_ = svc.List()
				if i%5 == 0 {
					svc.Destroy(id)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, len(svc.IDs()), svc.ActiveVoices())
	require.NoError(t, svc.Close())
	assert.Equal(t, 0, svc.ActiveVoices())
}
