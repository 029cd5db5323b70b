package exec

import "github.com/prometheus/client_golang/prometheus"

// Metrics wires VM activity to Prometheus, the same client_golang package
// SPEC_FULL.md's §4.5 observability note names and the rest of the node
// (storage, transport) is instrumented with.
type Metrics struct {
	StepsStarted   prometheus.Counter
	StepsCompleted prometheus.Counter
	StepsAborted   prometheus.Counter
	InFlightSteps  prometheus.Gauge
	RoundMessages  prometheus.Counter
}

// NewMetrics registers this VM's metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StepsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nilvm", Subsystem: "exec", Name: "steps_started_total",
			Help: "Execution steps started across all computations.",
		}),
		StepsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nilvm", Subsystem: "exec", Name: "steps_completed_total",
			Help: "Execution steps that reached a Final output.",
		}),
		StepsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nilvm", Subsystem: "exec", Name: "steps_aborted_total",
			Help: "Execution steps that aborted before completion.",
		}),
		InFlightSteps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nilvm", Subsystem: "exec", Name: "steps_in_flight",
			Help: "Execution steps currently awaiting round messages.",
		}),
		RoundMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nilvm", Subsystem: "exec", Name: "round_messages_total",
			Help: "Protocol round messages routed through the VM.",
		}),
	}
	reg.MustRegister(m.StepsStarted, m.StepsCompleted, m.StepsAborted, m.InFlightSteps, m.RoundMessages)
	return m
}
