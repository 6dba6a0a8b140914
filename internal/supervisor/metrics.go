package supervisor

import "github.com/prometheus/client_golang/prometheus"

var (
	guardTripsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "supervisor",
			Name:      "guard_trips_total",
			Help:      "Liveness guard trips by reason",
		},
		[]string{"reason"},
	)

	retriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "supervisor",
			Name:      "retries_total",
			Help:      "Generation attempts replayed after a recoverable failure",
		},
	)
)

func init() {
	prometheus.MustRegister(guardTripsTotal, retriesTotal)
}
