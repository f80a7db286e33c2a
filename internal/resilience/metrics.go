package resilience

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds breaker collectors. A nil *Metrics records nothing.
type Metrics struct {
	State       *prometheus.GaugeVec
	Transitions *prometheus.CounterVec
	Opened      *prometheus.CounterVec
}

// NewMetrics registers breaker collectors on reg, reusing ones already registered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed,1=open,2=half-open",
		}, []string{"target"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions",
		}, []string{"target", "from", "to"}),
		Opened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_open_total",
			Help:      "Number of times a breaker transitioned into open state",
		}, []string{"target"}),
	}
	m.State = register(reg, m.State)
	m.Transitions = register(reg, m.Transitions)
	m.Opened = register(reg, m.Opened)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) setState(target string, s State) {
	if m == nil {
		return
	}
	var v float64
	switch s {
	case Open:
		v = 1
	case HalfOpen:
		v = 2
	}
	m.State.WithLabelValues(target).Set(v)
}

func (m *Metrics) transition(target string, from, to State) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(target, from.String(), to.String()).Inc()
	if to == Open {
		m.Opened.WithLabelValues(target).Inc()
	}
}
