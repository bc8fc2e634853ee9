package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for pipeline execution, namespaced with
// "blackscope_".
//
// Exposed series:
//   - node_runs_total (counter): node executions by node and outcome
//     (success, precondition, error).
//   - node_duration_seconds (histogram): wall time per node execution.
//   - messages_relayed_total (counter): messages relayed to the consumer.
//   - runs_active (gauge): orchestrator runs currently in flight.
//
// Construct with a dedicated registry and expose it via promhttp; tests pass
// prometheus.NewRegistry() to stay isolated.
type Metrics struct {
	nodeRuns        *prometheus.CounterVec
	nodeDuration    *prometheus.HistogramVec
	messagesRelayed prometheus.Counter
	runsActive      prometheus.Gauge
}

// Node run outcomes used as the status label of node_runs_total.
const (
	statusSuccess      = "success"
	statusPrecondition = "precondition"
	statusError        = "error"
)

// NewMetrics registers the pipeline metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		nodeRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blackscope",
			Name:      "node_runs_total",
			Help:      "Node executions by node identifier and outcome.",
		}, []string{"node", "status"}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blackscope",
			Name:      "node_duration_seconds",
			Help:      "Wall time of one node execution.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"node"}),
		messagesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "blackscope",
			Name:      "messages_relayed_total",
			Help:      "Messages relayed live to the consumer.",
		}),
		runsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "blackscope",
			Name:      "runs_active",
			Help:      "Orchestrator runs currently in flight.",
		}),
	}
}

func (m *Metrics) runStarted() {
	if m != nil {
		m.runsActive.Inc()
	}
}

func (m *Metrics) runFinished() {
	if m != nil {
		m.runsActive.Dec()
	}
}

func (m *Metrics) messageRelayed() {
	if m != nil {
		m.messagesRelayed.Inc()
	}
}

func (m *Metrics) nodeFinished(node, status string, elapsed time.Duration) {
	if m != nil {
		m.nodeRuns.WithLabelValues(node, status).Inc()
		m.nodeDuration.WithLabelValues(node).Observe(elapsed.Seconds())
	}
}
