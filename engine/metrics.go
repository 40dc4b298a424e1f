package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of an Engine.
type Metrics struct {
	// Artifacts counts emitted models by target and outcome
	// (succeeded or failed).
	Artifacts *prometheus.CounterVec

	// PhaseDuration observes load, generate and validate phases.
	PhaseDuration *prometheus.HistogramVec

	// Schemas is the number of schemas loaded by the last load.
	Schemas prometheus.Gauge

	// StaleFiles is the number of stale files found by the last validate.
	StaleFiles prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Artifacts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "usrgen",
				Name:      "artifacts_total",
				Help:      "Total number of emitted models",
			},
			[]string{"target", "outcome"},
		),
		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "usrgen",
				Name:      "phase_duration_seconds",
				Help:      "Duration of engine phases in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"phase"},
		),
		Schemas: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "usrgen",
				Name:      "schemas_loaded",
				Help:      "Number of schemas loaded by the last load",
			},
		),
		StaleFiles: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "usrgen",
				Name:      "stale_files",
				Help:      "Number of stale generated files found by the last validation",
			},
		),
	}
}
