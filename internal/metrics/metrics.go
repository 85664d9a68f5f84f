package metrics

import (
	"context"
	"time"

	"ringstat/domain/sweep"
	"ringstat/internal/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ringstat"

// =============================================================================
// Prometheus Metrics for Trials and Sweeps
// =============================================================================

// Metrics records trial and sweep activity. It is both a trials.Observer and
// a ports.ProgressSink.
type Metrics struct {
	registry *prometheus.Registry

	// trialDuration measures wall time of single trials.
	// Labels: status (success, error)
	trialDuration *prometheus.HistogramVec

	// trialFailures counts failed trials by error code.
	// Labels: code
	trialFailures *prometheus.CounterVec

	// cellsCompleted counts finished grid cells.
	// Labels: kind
	cellsCompleted *prometheus.CounterVec

	// cellRate holds the success rate of the most recent cell.
	// Labels: kind
	cellRate *prometheus.GaugeVec

	// sweepProgress holds the fraction of cells finished in the current sweep.
	// Labels: kind
	sweepProgress *prometheus.GaugeVec
}

// New registers the metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		trialDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trials",
			Name:      "duration_seconds",
			Help:      "Wall time of single trials in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"status"}),
		trialFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trials",
			Name:      "failures_total",
			Help:      "Failed trials by error code",
		}, []string{"code"}),
		cellsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "cells_completed_total",
			Help:      "Finished grid cells by sweep kind",
		}, []string{"kind"}),
		cellRate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "cell_success_rate",
			Help:      "Success rate of the most recently finished cell",
		}, []string{"kind"}),
		sweepProgress: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "progress_ratio",
			Help:      "Fraction of cells finished in the current sweep",
		}, []string{"kind"}),
	}
}

// Registry returns the registry for exposition
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TrialFinished records one trial
func (m *Metrics) TrialFinished(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.trialFailures.WithLabelValues(errors.GetCode(err)).Inc()
	}
	m.trialDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Report records one finished cell
func (m *Metrics) Report(_ context.Context, ev sweep.ProgressEvent) {
	kind := string(ev.Kind)
	m.cellsCompleted.WithLabelValues(kind).Inc()
	m.cellRate.WithLabelValues(kind).Set(ev.Rate)
	if ev.Total > 0 {
		m.sweepProgress.WithLabelValues(kind).Set(float64(ev.Current) / float64(ev.Total))
	}
}
