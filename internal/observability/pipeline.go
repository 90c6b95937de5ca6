package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks report runs of the sales pipeline. A nil receiver
// records nothing.
type PipelineMetrics struct {
	records  *prometheus.CounterVec
	undated  prometheus.Counter
	foreign  prometheus.Counter
	rate     *prometheus.GaugeVec
	fallback prometheus.Counter
	duration *prometheus.HistogramVec
}

// NewPipelineMetrics registers the pipeline collectors against registerer.
func NewPipelineMetrics(registerer prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salesroom_pipeline_records_total",
			Help: "Raw feed records processed by report runs, by stage.",
		}, []string{"stage"}),
		undated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "salesroom_pipeline_undated_records_total",
			Help: "Records whose date could not be parsed.",
		}),
		foreign: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "salesroom_pipeline_foreign_records_total",
			Help: "Records converted from a foreign currency.",
		}),
		rate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salesroom_exchange_rate",
			Help: "Exchange rate applied to foreign-currency amounts.",
		}, []string{"source"}),
		fallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "salesroom_exchange_rate_fallback_total",
			Help: "Report runs priced with the fallback rate.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "salesroom_pipeline_duration_seconds",
			Help:    "Duration of pipeline runs by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	registerer.MustRegister(m.records, m.undated, m.foreign, m.rate, m.fallback, m.duration)
	return m
}

// RunStats is the per-run input of ObserveRun.
type RunStats struct {
	Records  int
	Undated  int
	Foreign  int
	Filtered int
}

// ObserveRun records one pipeline run.
func (m *PipelineMetrics) ObserveRun(operation string, stats RunStats, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.records.WithLabelValues("ingested").Add(float64(stats.Records))
	m.records.WithLabelValues("filtered").Add(float64(stats.Filtered))
	m.undated.Add(float64(stats.Undated))
	m.foreign.Add(float64(stats.Foreign))
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveRate records the rate applied by a run.
func (m *PipelineMetrics) ObserveRate(source string, rate float64, fallback bool) {
	if m == nil {
		return
	}
	m.rate.Reset()
	m.rate.WithLabelValues(source).Set(rate)
	if fallback {
		m.fallback.Inc()
	}
}
