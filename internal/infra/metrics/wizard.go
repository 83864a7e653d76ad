package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		wizardSessionsTotal,
		wizardStepsTotal,
		chargeFetchTotal,
		chargeFetchLatencyMs,
	)
}

var (
	wizardSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_sessions_total",
			Help: "Wizard sessions opened per service slug.",
		},
		[]string{"service"},
	)

	wizardStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_steps_total",
			Help: "Step landings after a navigation event, per step id.",
		},
		[]string{"step"},
	)

	chargeFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "charge_fetch_total",
			Help: "Outstanding-charge lookups by outcome (ok/empty/error).",
		},
		[]string{"outcome"},
	)

	chargeFetchLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "charge_fetch_latency_ms",
			Help:    "Outstanding-charge lookup latency in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
	)
)

func IncWizardSession(service string) {
	wizardSessionsTotal.WithLabelValues(norm(service)).Inc()
}

func IncWizardStep(step string) {
	wizardStepsTotal.WithLabelValues(norm(step)).Inc()
}

func ObserveChargeFetch(outcome string, elapsed time.Duration) {
	chargeFetchTotal.WithLabelValues(norm(outcome)).Inc()
	chargeFetchLatencyMs.Observe(float64(elapsed.Milliseconds()))
}
