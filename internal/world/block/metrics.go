package block

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Маршруты вызова
const (
	RouteBehavior = "behavior"
	RouteDefault  = "default"
)

// Metrics - Prometheus-метрики диспетчера.
//
// Метрики:
// * blockbase_dispatch_calls_total{op,route} - вызовы движка по маршрутам
// * blockbase_dispatch_failures_total{reason} - деградации к поведению по умолчанию
type Metrics struct {
	calls    *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewMetrics создаёт метрики и регистрирует их в reg (если reg != nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockbase",
			Subsystem: "dispatch",
			Name:      "calls_total",
			Help:      "Вызовы движка, обработанные диспетчером.",
		}, []string{"op", "route"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockbase",
			Subsystem: "dispatch",
			Name:      "failures_total",
			Help:      "Вызовы, деградировавшие к поведению по умолчанию из-за ошибки.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.failures)
	}
	return m
}

// Calls возвращает счётчик вызовов (для тестов и экспорта).
func (m *Metrics) Calls() *prometheus.CounterVec {
	return m.calls
}

// Failures возвращает счётчик деградаций.
func (m *Metrics) Failures() *prometheus.CounterVec {
	return m.failures
}

func (m *Metrics) observeCall(op, route string) {
	m.calls.WithLabelValues(op, route).Inc()
}

func (m *Metrics) observeFailure(reason string) {
	m.failures.WithLabelValues(reason).Inc()
}
