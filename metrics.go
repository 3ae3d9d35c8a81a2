package subsolve

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("crosswarped.com/subsolve")

var (
	proposalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subsolve_proposals_total",
		Help: "Key swaps proposed by the hill climber, by outcome",
	}, []string{"outcome"})

	restartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subsolve_restarts_total",
		Help: "Completed restarts, by stop reason",
	}, []string{"stop"})

	restartDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "subsolve_restart_duration_seconds",
		Help:    "Wall-clock time of a single restart",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~30s
	})
)

func recordRestart(r Result, seconds float64) {
	proposalsTotal.WithLabelValues("accepted").Add(float64(r.Accepts))
	proposalsTotal.WithLabelValues("rejected").Add(float64(r.Iterations - r.Accepts))
	restartsTotal.WithLabelValues(r.Stop.String()).Inc()
	restartDuration.Observe(seconds)
}
