package engine

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RecomputeTotal counts buffer recomputes by pass.
	// Labels: pass (values, gradients, both)
	RecomputeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gosymopt",
			Subsystem: "engine",
			Name:      "recompute_total",
			Help:      "Total recomputes of the shared evaluation buffer",
		},
		[]string{"pass"},
	)

	// RecomputeNodes counts vids visited by recomputes.
	RecomputeNodes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gosymopt",
			Subsystem: "engine",
			Name:      "recompute_nodes_total",
			Help:      "Total graph nodes evaluated by recomputes",
		},
	)

	// CallbackTotal counts solver callback invocations.
	// Labels: kind (value, gradient)
	CallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gosymopt",
			Subsystem: "engine",
			Name:      "callback_total",
			Help:      "Total value and gradient callback invocations",
		},
		[]string{"kind"},
	)
)

// RegisterMetrics registers the engine collectors with r. Collectors that
// are already registered are left in place.
func RegisterMetrics(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{RecomputeTotal, RecomputeNodes, CallbackTotal} {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
