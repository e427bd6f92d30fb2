// ABOUTME: Registry of live sound sources keyed by host-chosen id
// ABOUTME: Single source of truth for what is currently playing
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/internal/metrics"
	"github.com/charmbracelet/log"
)

// VoiceFactory opens a payload and starts it playing
type VoiceFactory func(ctx context.Context, payload string) (Playback, error)

// Config configures a Registry
type Config struct {
	NewVoice VoiceFactory
	Logger   *log.Logger
	Metrics  *metrics.Metrics

	// Now is the clock used for creation times
	Now func() time.Time
}

// Registry maps ids to playing sources. Every key maps to a source that
// has not been released.
type Registry struct {
	mu      sync.Mutex
	sources map[string]*Source

	newVoice VoiceFactory
	logger   *log.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates an empty registry
func New(config Config) *Registry {
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Registry{
		sources:  make(map[string]*Source),
		newVoice: config.NewVoice,
		logger:   config.Logger.WithPrefix("registry"),
		metrics:  config.Metrics,
		now:      config.Now,
	}
}

// Create opens payload and stores it under id, replacing and releasing any
// source already there. It returns id unchanged. On error the registry is
// left untouched.
func (r *Registry) Create(ctx context.Context, payload, id string) (string, error) {
	// Opening may hit the network, so it happens outside the lock
	voice, err := r.newVoice(ctx, payload)
	if err != nil {
		r.metrics.CreateFailed()
		return "", fmt.Errorf("failed to create source %s: %w", id, err)
	}
	src := newSource(id, payload, voice, r.now())

	r.mu.Lock()
	old, replaced := r.sources[id]
	r.sources[id] = src
	r.mu.Unlock()

	if replaced {
		old.Release()
		r.logger.Debug("Source replaced", "id", id, "old", old.Payload, "new", payload)
	} else {
		r.logger.Debug("Source created", "id", id, "payload", payload)
	}
	r.metrics.SourceCreated(replaced)
	return id, nil
}

// Destroy removes and releases the source under id. It reports whether a
// source was present.
func (r *Registry) Destroy(id string) bool {
	r.mu.Lock()
	src, ok := r.sources[id]
	delete(r.sources, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	src.Release()
	r.metrics.SourceDestroyed()
	r.logger.Debug("Source destroyed", "id", id)
	return true
}

func (r *Registry) get(id string) *Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sources[id]
}

// SetPosition moves the source under id. Unknown ids are ignored.
func (r *Registry) SetPosition(id string, x, y, z float32) {
	if src := r.get(id); src != nil {
		src.SetPosition([3]float32{x, y, z})
	}
}

// SetGain sets the gain of the source under id. Unknown ids are ignored.
func (r *Registry) SetGain(id string, gain float32) {
	if src := r.get(id); src != nil {
		src.SetGain(gain)
	}
}

// List returns the live ids in sorted order
func (r *Registry) List() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of live sources
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sources)
}

// Snapshot describes every live source, sorted by id
func (r *Registry) Snapshot() []SourceInfo {
	r.mu.Lock()
	sources := make([]*Source, 0, len(r.sources))
	for _, src := range r.sources {
		sources = append(sources, src)
	}
	r.mu.Unlock()

	infos := make([]SourceInfo, len(sources))
	for i, src := range sources {
		infos[i] = src.Info()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// ClearAll removes every source in one step and releases them. It returns
// how many were removed.
func (r *Registry) ClearAll() int {
	r.mu.Lock()
	cleared := r.sources
	r.sources = make(map[string]*Source)
	r.mu.Unlock()

	for _, src := range cleared {
		src.Release()
	}
	if len(cleared) > 0 {
		r.metrics.SourcesCleared(len(cleared))
		r.logger.Info("Cleared sources", "count", len(cleared))
	}
	return len(cleared)
}

// FormatList renders ids as [id1,id2,...]
func FormatList(ids []string) string {
	return "[" + strings.Join(ids, ",") + "]"
}
