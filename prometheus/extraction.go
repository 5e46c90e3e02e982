package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ExtractionCollector counts what happened during an extraction run.
type ExtractionCollector interface {
	prometheus.Collector

	// ObserveQuery records a query of the prober or tracer.
	ObserveQuery(query string, duration time.Duration, cached bool)

	// SegmentDone records a probed segment.
	SegmentDone()

	// Warning records a warning.
	Warning()

	// Finished records the total duration of the run.
	Finished(duration time.Duration)
}

type extractionCollector struct {
	segments prometheus.Counter
	queries  *prometheus.CounterVec
	warnings prometheus.Counter
	probes   *prometheus.HistogramVec
	runtime  prometheus.Gauge
}

// NewExtractionCollector returns a collector for a run in the given mode.
func NewExtractionCollector(mode int) ExtractionCollector {
	labels := prometheus.Labels{"mode": strconv.Itoa(mode)}

	return &extractionCollector{
		segments: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "p1203_segments_total",
			Help:        "Number of segments that have been probed",
			ConstLabels: labels,
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "p1203_probe_queries_total",
			Help:        "Number of queries to the prober and the tracer",
			ConstLabels: labels,
		}, []string{"query", "cached"}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "p1203_warnings_total",
			Help:        "Number of warnings about missing metadata",
			ConstLabels: labels,
		}),
		probes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "p1203_probe_duration_seconds",
			Help:        "Duration of the queries to the prober and the tracer that have not been cached",
			ConstLabels: labels,
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"query"}),
		runtime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "p1203_extraction_duration_seconds",
			Help:        "Duration of the extraction run",
			ConstLabels: labels,
		}),
	}
}

func (c *extractionCollector) Describe(ch chan<- *prometheus.Desc) {
	c.segments.Describe(ch)
	c.queries.Describe(ch)
	c.warnings.Describe(ch)
	c.probes.Describe(ch)
	c.runtime.Describe(ch)
}

func (c *extractionCollector) Collect(ch chan<- prometheus.Metric) {
	c.segments.Collect(ch)
	c.queries.Collect(ch)
	c.warnings.Collect(ch)
	c.probes.Collect(ch)
	c.runtime.Collect(ch)
}

func (c *extractionCollector) ObserveQuery(query string, duration time.Duration, cached bool) {
	c.queries.WithLabelValues(query, strconv.FormatBool(cached)).Inc()

	if !cached {
		c.probes.WithLabelValues(query).Observe(duration.Seconds())
	}
}

func (c *extractionCollector) SegmentDone() {
	c.segments.Inc()
}

func (c *extractionCollector) Warning() {
	c.warnings.Inc()
}

func (c *extractionCollector) Finished(duration time.Duration) {
	c.runtime.Set(duration.Seconds())
}
