// Package metrics holds the Prometheus collectors for a pipeline run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "conflictmap"

// Metrics holds the Prometheus counters, histograms, and gauges for the pipeline.
type Metrics struct {
	EventsLoaded  prometheus.Counter
	EventsSkipped prometheus.Counter

	FramesRendered prometheus.Counter
	FramesFailed   prometheus.Counter
	FramesSkipped  prometheus.Counter

	CaptureDuration prometheus.Histogram
	StageDuration   *prometheus.HistogramVec // labels: stage={fetch,load,boundary,frames,animate,geojson}

	FetchBytes      prometheus.Counter
	AnimationBytes  prometheus.Gauge
	PipelineRunning prometheus.Gauge

	registry *prometheus.Registry
}

func newCollectors() *Metrics {
	return &Metrics{
		EventsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_loaded_total",
			Help:      "Events kept after country filtering.",
		}),
		EventsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_skipped_total",
			Help:      "Rows dropped because a required value could not be parsed.",
		}),
		FramesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rendered_total",
			Help:      "Month frames captured and saved.",
		}),
		FramesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_failed_total",
			Help:      "Month frames that could not be rendered or captured.",
		}),
		FramesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_skipped_total",
			Help:      "Month frames reused from a previous run.",
		}),
		CaptureDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_duration_seconds",
			Help:      "Time to render, load and screenshot one month map.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 7.5, 10, 15, 30, 60},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"stage"}),
		FetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_bytes_total",
			Help:      "Bytes downloaded from the dataset source.",
		}),
		AnimationBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "animation_bytes",
			Help:      "Size of the last written animation.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a build is in progress, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.EventsLoaded,
		m.EventsSkipped,
		m.FramesRendered,
		m.FramesFailed,
		m.FramesSkipped,
		m.CaptureDuration,
		m.StageDuration,
		m.FetchBytes,
		m.AnimationBytes,
		m.PipelineRunning,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newCollectors()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newCollectors()
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(m.collectors()...)
	return m
}

// Gatherer returns the registry the metrics were registered with
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m.registry != nil {
		return m.registry
	}
	return prometheus.DefaultGatherer
}

// ObserveStage records how long a stage took since started
func (m *Metrics) ObserveStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// ObserveCapture records the duration of a single frame capture
func (m *Metrics) ObserveCapture(d time.Duration) {
	if m == nil {
		return
	}
	m.CaptureDuration.Observe(d.Seconds())
}
