package ioc

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MetricsTestSuite struct {
	suite.Suite
	registry *prometheus.Registry
	metrics  *Metrics
	logs     *observer.ObservedLogs
	kernel   *Kernel
}

func (s *MetricsTestSuite) SetupTest() {
	s.registry = prometheus.NewRegistry()
	m, err := NewMetrics(s.registry)
	s.Require().NoError(err)
	s.metrics = m

	core, logs := observer.New(zapcore.DebugLevel)
	s.logs = logs
	s.kernel = NewKernel(WithName("app"), WithMetrics(m), WithLogger(zap.New(core)))
}

func (s *MetricsTestSuite) TearDownTest() {
	s.kernel.Dispose()
}

// value returns the value of the series of family name carrying labels.
func (s *MetricsTestSuite) value(name string, labels map[string]string) float64 {
	families, err := s.registry.Gather()
	s.Require().NoError(err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if matches(m, labels) {
				if c := m.GetCounter(); c != nil {
					return c.GetValue()
				}
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func matches(m *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok {
			if v != lp.GetValue() {
				return false
			}
			found++
		}
	}
	return found == len(labels)
}

func constructor(instance any) Constructor {
	return func(*CreationContext, Arguments) (any, error) { return instance, nil }
}

type closer struct{ closed bool }

func (c *closer) OnDecommission() error {
	c.closed = true
	return nil
}

func (s *MetricsTestSuite) TestRegistrationAndWaiting() {
	_, err := s.kernel.Register(&ComponentDescriptor{
		Key: "sender", Implementation: "sender",
		Dependencies: []DependencySpec{DependsOnService("engine")},
		Constructor:  constructor(&closer{}),
	})
	s.Require().NoError(err)
	s.Equal(1.0, s.value("ioc_components_registered_total", map[string]string{"kernel": "app"}))
	s.Equal(1.0, s.value("ioc_handlers_waiting", map[string]string{"kernel": "app"}))

	_, err = s.kernel.Register(&ComponentDescriptor{Key: "engine", Implementation: "engine", Constructor: constructor(&closer{})})
	s.Require().NoError(err)
	s.Equal(2.0, s.value("ioc_components_registered_total", map[string]string{"kernel": "app"}))
	s.Equal(0.0, s.value("ioc_handlers_waiting", map[string]string{"kernel": "app"}))
}

func (s *MetricsTestSuite) TestResolutionOutcomes() {
	_, err := s.kernel.Register(&ComponentDescriptor{Key: "engine", Implementation: "engine", Constructor: constructor(&closer{})})
	s.Require().NoError(err)
	_, err = s.kernel.Register(&ComponentDescriptor{
		Key: "sender", Implementation: "sender",
		Dependencies: []DependencySpec{DependsOnService("missing")},
	})
	s.Require().NoError(err)

	_, err = s.kernel.ResolveKey("engine")
	s.Require().NoError(err)
	_, err = s.kernel.ResolveKey("nothing")
	s.Error(err)
	_, err = s.kernel.ResolveKey("sender")
	s.Error(err)

	s.Equal(1.0, s.value("ioc_resolutions_total", map[string]string{"kernel": "app", "outcome": OutcomeOK}))
	s.Equal(1.0, s.value("ioc_resolutions_total", map[string]string{"kernel": "app", "outcome": OutcomeNotFound}))
	s.Equal(1.0, s.value("ioc_resolutions_total", map[string]string{"kernel": "app", "outcome": OutcomeNotValid}))
	s.Equal(1.0, s.value("ioc_instances_created_total", map[string]string{"lifestyle": "singleton"}))
}

func (s *MetricsTestSuite) TestDecommissionCounted() {
	_, err := s.kernel.Register(&ComponentDescriptor{Key: "engine", Implementation: "engine", Constructor: constructor(&closer{})})
	s.Require().NoError(err)
	instance, err := s.kernel.ResolveKey("engine")
	s.Require().NoError(err)

	s.Require().NoError(s.kernel.Dispose())
	s.True(instance.(*closer).closed)
	s.Equal(1.0, s.value("ioc_instances_decommissioned_total", map[string]string{"outcome": OutcomeOK}))
}

func (s *MetricsTestSuite) TestDuplicateRegistrationOnRegistry() {
	_, err := NewMetrics(s.registry)
	s.Error(err, "collectors are already registered")
}

func (s *MetricsTestSuite) TestNilMetricsIsSafe() {
	var m *Metrics
	s.NotPanics(func() {
		m.registered("k")
		m.resolved("k", nil)
		m.created(Singleton)
		m.decommissioned(false)
		m.waiting("k", 1)
	})
}

func (s *MetricsTestSuite) TestStructuredLogging() {
	_, err := s.kernel.Register(&ComponentDescriptor{
		Key: "sender", Implementation: "sender",
		Dependencies: []DependencySpec{DependsOnService("engine")},
		Constructor:  constructor(&closer{}),
	})
	s.Require().NoError(err)
	_, err = s.kernel.Register(&ComponentDescriptor{Key: "engine", Implementation: "engine", Constructor: constructor(&closer{})})
	s.Require().NoError(err)

	waiting := s.logs.FilterMessage("component registered, waiting for dependencies").All()
	s.Require().Len(waiting, 1)
	s.Equal("sender", waiting[0].ContextMap()["key"])
	s.Equal("app", waiting[0].ContextMap()["kernel"])

	s.Equal(1, s.logs.FilterMessage("component became valid").FilterField(zap.String("key", "sender")).Len())

	_, err = s.kernel.ResolveKey("sender")
	s.Require().NoError(err)
	s.Equal(2, s.logs.FilterMessage("component activated").Len())

	s.Require().NoError(s.kernel.Dispose())
	s.Equal(1, s.logs.FilterMessage("kernel disposed").Len())
}

func (s *MetricsTestSuite) TestDecommissionFailureLogged() {
	_, err := s.kernel.Register(&ComponentDescriptor{
		Key: "flaky", Implementation: "flaky",
		Constructor: constructor(&closer{}),
		DecommissionSteps: []DecommissionStep{
			func(any) error { return ErrNoConstructor },
		},
	})
	s.Require().NoError(err)
	_, err = s.kernel.ResolveKey("flaky")
	s.Require().NoError(err)

	s.Error(s.kernel.Dispose())
	s.Equal(1, s.logs.FilterMessage("decommission failed").Len())
	s.Equal(1, s.logs.FilterMessage("kernel disposed with errors").Len())
	s.Equal(1.0, s.value("ioc_instances_decommissioned_total", map[string]string{"outcome": OutcomeError}))
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}
