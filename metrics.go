package ioc

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes kernel activity as Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	registrations  *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
	instances      *prometheus.CounterVec
	decommissions  *prometheus.CounterVec
	waitingHandler *prometheus.GaugeVec
}

// NewMetrics creates the kernel collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ioc",
			Name:      "components_registered_total",
			Help:      "Components registered, by kernel.",
		}, []string{"kernel"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ioc",
			Name:      "resolutions_total",
			Help:      "Root resolutions, by kernel and outcome.",
		}, []string{"kernel", "outcome"}),
		instances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ioc",
			Name:      "instances_created_total",
			Help:      "Component instances constructed and commissioned, by lifestyle.",
		}, []string{"lifestyle"}),
		decommissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ioc",
			Name:      "instances_decommissioned_total",
			Help:      "Component instances decommissioned, by outcome.",
		}, []string{"outcome"}),
		waitingHandler: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ioc",
			Name:      "handlers_waiting",
			Help:      "Handlers waiting for dependencies, by kernel.",
		}, []string{"kernel"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.registrations, m.resolutions, m.instances, m.decommissions, m.waitingHandler} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Resolution outcomes
const (
	OutcomeOK        = "ok"
	OutcomeNotFound  = "not_found"
	OutcomeNotValid  = "not_valid"
	OutcomeCircular  = "circular"
	OutcomeActivator = "activation_failed"
	OutcomeError     = "error"
)

func resolutionOutcome(err error) string {
	var (
		notFound *ComponentNotFoundError
		notValid *NotValidError
		circular *CircularDependencyError
		act      *ActivationError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &circular):
		return OutcomeCircular
	case errors.As(err, &act):
		return OutcomeActivator
	case errors.As(err, &notValid):
		return OutcomeNotValid
	case errors.As(err, &notFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}

func (m *Metrics) registered(kernel string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(kernel).Inc()
}

func (m *Metrics) resolved(kernel string, err error) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(kernel, resolutionOutcome(err)).Inc()
}

func (m *Metrics) created(lifestyle Lifestyle) {
	if m == nil {
		return
	}
	m.instances.WithLabelValues(lifestyle.String()).Inc()
}

func (m *Metrics) decommissioned(ok bool) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if !ok {
		outcome = OutcomeError
	}
	m.decommissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) waiting(kernel string, delta float64) {
	if m == nil {
		return
	}
	m.waitingHandler.WithLabelValues(kernel).Add(delta)
}
