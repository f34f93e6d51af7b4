// Package jobmetrics instruments background task runs.
package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

// Metrics holds the worker collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lastOK   *prometheus.GaugeVec
	lowStock prometheus.Gauge
}

// NewMetrics builds the collectors and registers them with reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_jobs_total",
			Help: "Background task runs by task type and outcome.",
		}, []string{"task", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pos_job_duration_seconds",
			Help:    "Background task run time.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"task"}),
		lastOK: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pos_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per task type.",
		}, []string{"task"}),
		lowStock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pos_low_stock_items",
			Help: "Items at or below their reorder level at the last scan.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.duration, m.lastOK, m.lowStock)
	}
	return m
}

// Run times one task execution.
type Run struct {
	m     *Metrics
	task  string
	start time.Time
}

// Start begins timing a run of task.
func (m *Metrics) Start(task string) *Run {
	return &Run{m: m, task: task, start: time.Now()}
}

// Finish records the outcome of the run and returns err unchanged.
func (r *Run) Finish(err error) error {
	if r == nil || r.m == nil {
		return err
	}
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeFailed
	} else {
		r.m.lastOK.WithLabelValues(r.task).SetToCurrentTime()
	}
	r.m.runs.WithLabelValues(r.task, outcome).Inc()
	r.m.duration.WithLabelValues(r.task).Observe(time.Since(r.start).Seconds())
	return err
}

// SetLowStock publishes the item count found by the last low-stock scan.
func (m *Metrics) SetLowStock(count int) {
	if m == nil {
		return
	}
	m.lowStock.Set(float64(count))
}
