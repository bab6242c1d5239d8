package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the supervisor service.
type Metrics struct {
	RegistrySize   prometheus.Gauge
	Submissions    *prometheus.CounterVec
	TaskOutcomes   *prometheus.CounterVec
	SweepRemovals  prometheus.Counter
	SweeperLoops   prometheus.Counter
	NameCollisions prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RegistrySize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_size",
			Help:      "Number of task handles currently registered.",
		}),
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Task submissions by result.",
		}, []string{"result"}),
		TaskOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_outcomes_total",
			Help:      "Terminal task transitions by status.",
		}, []string{"status"}),
		SweepRemovals: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_removals_total",
			Help:      "Registry entries evicted by the cleanup sweeper.",
		}),
		SweeperLoops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_loops_total",
			Help:      "Sweeper loop starts over the process lifetime.",
		}),
		NameCollisions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "name_collisions_total",
			Help:      "Generated names rejected because they were already registered.",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
