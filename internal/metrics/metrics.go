// ABOUTME: Prometheus metrics for the spatial sound service
// ABOUTME: Counts source lifecycle events, liveness expiries and bridge calls
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "resonate_spatial"

// Metrics holds every collector the service exports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sourcesCreated   prometheus.Counter
	sourcesReplaced  prometheus.Counter
	sourcesDestroyed prometheus.Counter
	sourcesCleared   prometheus.Counter
	createErrors     prometheus.Counter

	heartbeats       prometheus.Counter
	livenessExpiries prometheus.Counter

	bridgeCalls        *prometheus.CounterVec
	bridgeCallDuration *prometheus.HistogramVec
	bridgeSessions     prometheus.Gauge

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// Status reports point-in-time values sampled at scrape time
type Status interface {
	ActiveSources() int
	ActiveVoices() int
	CachedClips() int
	Underruns() int64
}

// New creates the metrics and registers them with registry
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}

	m.sourcesCreated = counter("sources_created_total", "Sound sources created")
	m.sourcesReplaced = counter("sources_replaced_total", "Sound sources displaced by a create with the same id")
	m.sourcesDestroyed = counter("sources_destroyed_total", "Sound sources removed by destroy")
	m.sourcesCleared = counter("sources_cleared_total", "Sound sources removed by a registry clear")
	m.createErrors = counter("create_errors_total", "Creates that failed to open their payload")
	m.heartbeats = counter("heartbeats_total", "Heartbeats received from the host")
	m.livenessExpiries = counter("liveness_expiries_total", "Ticks that found the host silent and cleared the registry")

	m.bridgeCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_calls_total",
			Help:      "Boundary calls by function and outcome",
		},
		[]string{"fn", "outcome"},
	)
	m.bridgeCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bridge_call_duration_seconds",
			Help:      "Boundary call latency",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"fn"},
	)
	m.bridgeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bridge_sessions",
		Help:      "Open bridge connections",
	})

	m.collectors = []prometheus.Collector{
		m.sourcesCreated,
		m.sourcesReplaced,
		m.sourcesDestroyed,
		m.sourcesCleared,
		m.createErrors,
		m.heartbeats,
		m.livenessExpiries,
		m.bridgeCalls,
		m.bridgeCallDuration,
		m.bridgeSessions,
	}
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// Registry returns the registry the metrics were registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WatchStatus registers gauges that sample status on every scrape
func (m *Metrics) WatchStatus(status Status) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sources",
			Help:      "Sound sources in the registry",
		}, func() float64 { return float64(status.ActiveSources()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_voices",
			Help:      "Voices attached to the mixer",
		}, func() float64 { return float64(status.ActiveVoices()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_clips",
			Help:      "Decoded clips held in memory",
		}, func() float64 { return float64(status.CachedClips()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_underruns_total",
			Help:      "Render blocks where an active voice had too little audio buffered",
		}, func() float64 { return float64(status.Underruns()) }),
	}

	for _, g := range gauges {
		if err := m.registry.Register(g); err != nil {
			return err
		}
	}
	return nil
}

// SourceCreated records a new source; replaced is true when it displaced another
func (m *Metrics) SourceCreated(replaced bool) {
	if m == nil {
		return
	}
	m.sourcesCreated.Inc()
	if replaced {
		m.sourcesReplaced.Inc()
	}
}

// SourceDestroyed records a destroy that removed a source
func (m *Metrics) SourceDestroyed() {
	if m == nil {
		return
	}
	m.sourcesDestroyed.Inc()
}

// SourcesCleared records n sources removed at once
func (m *Metrics) SourcesCleared(n int) {
	if m == nil {
		return
	}
	m.sourcesCleared.Add(float64(n))
}

// CreateFailed records a create whose payload could not be opened
func (m *Metrics) CreateFailed() {
	if m == nil {
		return
	}
	m.createErrors.Inc()
}

// Heartbeat records a heartbeat
func (m *Metrics) Heartbeat() {
	if m == nil {
		return
	}
	m.heartbeats.Inc()
}

// LivenessExpired records a tick that cleared the registry
func (m *Metrics) LivenessExpired() {
	if m == nil {
		return
	}
	m.livenessExpiries.Inc()
}

// BridgeCall records one boundary call
func (m *Metrics) BridgeCall(fn string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.bridgeCalls.WithLabelValues(fn, outcome).Inc()
	m.bridgeCallDuration.WithLabelValues(fn).Observe(d.Seconds())
}

// SessionOpened and SessionClosed track bridge connections
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.bridgeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.bridgeSessions.Dec()
}
