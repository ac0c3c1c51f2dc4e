package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus метрики выполнения workflow.
//
// Все методы безопасны для nil-получателя: executor без метрик
// просто ничего не регистрирует.
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	nodesTotal   *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	runDuration  prometheus.Histogram
	inFlight     prometheus.Gauge
}

// NewMetrics регистрирует метрики в reg.
// nil reg — prometheus.DefaultRegisterer (отдаётся через promhttp.Handler).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agen8_workflow_runs_total",
			Help: "Total number of workflow runs by final status.",
		}, []string{"status"}),
		nodesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agen8_node_results_total",
			Help: "Total number of node results by action and status.",
		}, []string{"action", "status"}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agen8_node_duration_seconds",
			Help:    "Duration of node action invocations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agen8_workflow_duration_seconds",
			Help:    "Duration of workflow runs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agen8_nodes_in_flight",
			Help: "Number of node actions currently running.",
		}),
	}
}

// ObserveRun фиксирует завершённый run.
func (m *Metrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

// ObserveNode фиксирует результат узла.
// Для skipped узлов d равна нулю и в гистограмму не попадает.
func (m *Metrics) ObserveNode(action, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodesTotal.WithLabelValues(action, status).Inc()
	if d > 0 {
		m.nodeDuration.WithLabelValues(action).Observe(d.Seconds())
	}
}

// NodeStarted увеличивает счётчик выполняющихся узлов.
func (m *Metrics) NodeStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// NodeFinished уменьшает счётчик выполняющихся узлов.
func (m *Metrics) NodeFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}
