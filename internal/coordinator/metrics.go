package coordinator

import "github.com/prometheus/client_golang/prometheus"

var (
	workersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "coordinator",
			Name:      "workers",
			Help:      "Number of loaded model workers",
		},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "coordinator",
			Name:      "generations_total",
			Help:      "Total generations by terminal outcome",
		},
		[]string{"outcome"},
	)

	tokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "coordinator",
			Name:      "tokens_total",
			Help:      "Total tokens streamed across all generations",
		},
	)

	loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "coordinator",
			Name:      "model_load_duration_seconds",
			Help:      "Time from worker creation to readiness",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(workersGauge, generationsTotal, tokensTotal, loadDuration)
}
