// ABOUTME: Tests for the Prometheus metrics
// ABOUTME: Reads values back through the registry gatherer
package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct{}

// gather returns every sample keyed by name plus labels
func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			key := f.GetName()
			for _, label := range metric.GetLabel() {
				key += "," + label.GetName() + "=" + label.GetValue()
			}
			switch {
			case metric.GetGauge() != nil:
				values[key] = metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				values[key] = metric.GetCounter().GetValue()
			}
		}
	}
	return values
}

func (fakeStatus) ActiveSources() int { return 3 }
func (fakeStatus) ActiveVoices() int  { return 2 }
func (fakeStatus) CachedClips() int   { return 1 }
func (fakeStatus) Underruns() int64   { return 7 }

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SourceCreated(true)
		m.SourceDestroyed()
		m.SourcesCleared(4)
		m.CreateFailed()
		m.Heartbeat()
		m.LivenessExpired()
		m.BridgeCall("list", nil, time.Millisecond)
		m.SessionOpened()
		m.SessionClosed()
	})
}

func TestSourceCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.SourceCreated(false)
	m.SourceCreated(true)
	m.SourceDestroyed()
	m.SourcesCleared(5)

	values := gather(t, reg)
	assert.Equal(t, 2.0, values["resonate_spatial_sources_created_total"])
	assert.Equal(t, 1.0, values["resonate_spatial_sources_replaced_total"])
	assert.Equal(t, 1.0, values["resonate_spatial_sources_destroyed_total"])
	assert.Equal(t, 5.0, values["resonate_spatial_sources_cleared_total"])
}

func TestBridgeCallOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.BridgeCall("create", nil, time.Millisecond)
	m.BridgeCall("create", errors.New("boom"), time.Millisecond)
	m.BridgeCall("create", nil, time.Millisecond)

	values := gather(t, reg)
	assert.Equal(t, 2.0, values["resonate_spatial_bridge_calls_total,fn=create,outcome=ok"])
	assert.Equal(t, 1.0, values["resonate_spatial_bridge_calls_total,fn=create,outcome=error"])
}

func TestWatchStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	require.NoError(t, m.WatchStatus(fakeStatus{}))

	values := gather(t, reg)

	assert.Equal(t, 3.0, values["resonate_spatial_active_sources"])
	assert.Equal(t, 2.0, values["resonate_spatial_engine_voices"])
	assert.Equal(t, 1.0, values["resonate_spatial_cached_clips"])
	assert.Equal(t, 7.0, values["resonate_spatial_voice_underruns_total"])
}

func TestDoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}
