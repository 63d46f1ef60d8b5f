package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTesting(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.EventsLoaded.Add(12)
	a.FramesRendered.Inc()

	assert.Equal(t, float64(12), testutil.ToFloat64(a.EventsLoaded))
	assert.Equal(t, float64(1), testutil.ToFloat64(a.FramesRendered))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.EventsLoaded))
}

func TestObserveStage(t *testing.T) {
	m := NewMetricsForTesting()
	m.ObserveStage("load", time.Now().Add(-time.Second))
	m.ObserveStage("load", time.Now())
	m.ObserveStage("animate", time.Now())

	assert.Equal(t, 2, testutil.CollectAndCount(m.StageDuration, "conflictmap_stage_duration_seconds"))
}

func TestObserveCapture(t *testing.T) {
	m := NewMetricsForTesting()
	m.ObserveCapture(3 * time.Second)
	assert.Equal(t, 1, testutil.CollectAndCount(m.CaptureDuration))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStage("fetch", time.Now())
		m.ObserveCapture(time.Second)
	})
}

func TestGatherer(t *testing.T) {
	m := NewMetricsForTesting()
	m.FramesFailed.Inc()

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["conflictmap_frames_failed_total"])
	assert.True(t, names["conflictmap_pipeline_running"])
}
