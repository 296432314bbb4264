package orchestration

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	nodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nodeforge",
			Subsystem: "reconcile",
			Name:      "nodes_total",
			Help:      "Nodes settled by reconcile passes, by status",
		},
		[]string{"stack", "kind", "status"},
	)

	nodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nodeforge",
			Subsystem: "reconcile",
			Name:      "node_duration_seconds",
			Help:      "Duration of single node realizations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7m
		},
		[]string{"kind"},
	)

	passDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nodeforge",
			Subsystem: "reconcile",
			Name:      "pass_duration_seconds",
			Help:      "Duration of whole reconcile passes in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68m
		},
		[]string{"stack"},
	)
)

// Collectors returns the reconcile metrics.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{nodesTotal, nodeDuration, passDuration}
}

// RegisterMetrics registers the reconcile metrics with reg. Registering
// twice on the same registry is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// recordNodeMetric records a settled node.
func recordNodeMetric(stack, kind string, status Status, seconds float64) {
	nodesTotal.WithLabelValues(stack, kind, string(status)).Inc()
	if status == StatusCreated || status == StatusUpdated || status == StatusDeleted {
		nodeDuration.WithLabelValues(kind).Observe(seconds)
	}
}

// recordPassMetric records a finished pass.
func recordPassMetric(stack string, seconds float64) {
	passDuration.WithLabelValues(stack).Observe(seconds)
}

func (r *Reconciler) recordNode(res NodeResult) {
	if r.enableMetrics {
		recordNodeMetric(r.stack, string(res.Kind), res.Status, res.Duration.Seconds())
	}
}

func (r *Reconciler) recordPass(report *Report) {
	if r.enableMetrics {
		recordPassMetric(r.stack, report.Duration.Seconds())
	}
}
