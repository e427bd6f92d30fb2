// ABOUTME: Service facade over engine, registry and liveness
// ABOUTME: Implements the host-facing operations
package spatial

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/internal/engine"
	"github.com/Resonate-Protocol/resonate-spatial/internal/ident"
	"github.com/Resonate-Protocol/resonate-spatial/internal/liveness"
	"github.com/Resonate-Protocol/resonate-spatial/internal/metrics"
	"github.com/Resonate-Protocol/resonate-spatial/internal/registry"
	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
	"github.com/charmbracelet/log"
)

// ErrUnavailable is returned by New when the audio device cannot be opened
var ErrUnavailable = engine.ErrUnavailable

// Config configures a Service
type Config struct {
	Engine        engine.Config
	EngineOptions []engine.Option

	// Tick and Silence control liveness (default 1s and 3s)
	Tick    time.Duration
	Silence time.Duration

	// Now overrides the clock used for heartbeats
	Now func() time.Time

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// Service is the process-wide spatial sound service
type Service struct {
	engine     *engine.Handle
	registry   *registry.Registry
	supervisor *liveness.Supervisor
	logger     *log.Logger
	metrics    *metrics.Metrics
	closeOnce  sync.Once
}

// New opens the audio engine, applies the listener defaults and returns a
// service ready for calls. Liveness is not armed until Start.
func New(config Config) (*Service, error) {
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Engine.Logger == nil {
		config.Engine.Logger = config.Logger
	}

	h := engine.New(config.Engine, config.EngineOptions...)
	if err := h.InitListener(); err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to initialize audio engine: %w", err)
	}

	reg := registry.New(registry.Config{
		NewVoice: func(ctx context.Context, payload string) (registry.Playback, error) {
			v, err := h.NewVoice(ctx, payload)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		Logger:  config.Logger,
		Metrics: config.Metrics,
		Now:     config.Now,
	})

	sup := liveness.New(liveness.Config{
		Tick:    config.Tick,
		Silence: config.Silence,
		Clear:   reg.ClearAll,
		Now:     config.Now,
		Logger:  config.Logger,
		Metrics: config.Metrics,
	})

	return &Service{
		engine:     h,
		registry:   reg,
		supervisor: sup,
		logger:     config.Logger.WithPrefix("spatial"),
		metrics:    config.Metrics,
	}, nil
}

// Start resets the heartbeat and arms liveness supervision
func (s *Service) Start() {
	s.supervisor.Start()
}

// Heartbeat tells the service the host is still alive
func (s *Service) Heartbeat() {
	s.supervisor.Heartbeat()
}

// ID returns a fresh random source id
func (s *Service) ID() string {
	return ident.New()
}

// Create starts payload playing under id and returns id
func (s *Service) Create(ctx context.Context, payload, id string) (string, error) {
	return s.registry.Create(ctx, payload, id)
}

// Destroy stops the source under id and reports whether it existed
func (s *Service) Destroy(id string) bool {
	return s.registry.Destroy(id)
}

// Pos moves the source under id
func (s *Service) Pos(id string, x, y, z float32) {
	s.registry.SetPosition(id, x, y, z)
}

// Gain sets the gain of the source under id
func (s *Service) Gain(id string, gain float32) {
	s.registry.SetGain(id, gain)
}

// Orientation sets the listener's forward and up vectors
func (s *Service) Orientation(dx, dy, dz, ux, uy, uz float32) error {
	return s.engine.SetOrientation(audio.Vec3{dx, dy, dz}, audio.Vec3{ux, uy, uz})
}

// List renders the live ids as [id1,id2,...]
func (s *Service) List() string {
	return registry.FormatList(s.registry.List())
}

// IDs returns the live ids in sorted order
func (s *Service) IDs() []string {
	return s.registry.List()
}

// Status is a point-in-time view of the service
type Status struct {
	Backend       string
	Listener      engine.ListenerState
	Armed         bool
	LastHeartbeat time.Time
	Sources       []registry.SourceInfo
	Voices        int
	CachedClips   int
	Underruns     int64
}

// Status returns a snapshot for monitoring
func (s *Service) Status() Status {
	return Status{
		Backend:       s.engine.Backend(),
		Listener:      s.engine.Listener(),
		Armed:         s.supervisor.Armed(),
		LastHeartbeat: s.supervisor.LastHeartbeat(),
		Sources:       s.registry.Snapshot(),
		Voices:        s.engine.ActiveVoices(),
		CachedClips:   s.engine.CachedClips(),
		Underruns:     s.engine.Underruns(),
	}
}

// ActiveSources, ActiveVoices, CachedClips and Underruns feed scrape-time metrics

func (s *Service) ActiveSources() int { return s.registry.Len() }
func (s *Service) ActiveVoices() int  { return s.engine.ActiveVoices() }
func (s *Service) CachedClips() int   { return s.engine.CachedClips() }
func (s *Service) Underruns() int64   { return s.engine.Underruns() }

// Close stops supervision, destroys every source and closes the engine
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.supervisor.Close()
		n := s.registry.ClearAll()
		err = s.engine.Close()
		s.logger.Info("Service closed", "released", n)
	})
	return err
}
