package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	RetryAttempts    *prometheus.CounterVec
	RetryOutcomes    *prometheus.CounterVec
	Settlements      *prometheus.CounterVec
	Compensations    *prometheus.CounterVec
	MonitorTracked   prometheus.Gauge
	MonitorEvents    *prometheus.CounterVec
	MonitorChecks    prometheus.Counter
	BatchItems       *prometheus.CounterVec
	BatchesFinished  *prometheus.CounterVec
	SubmitLatencySec *prometheus.HistogramVec
}

// NewMetrics registers all collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not panic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RetryAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Attempts made by the retry layer, by operation and result.",
		}, []string{"operation", "result"}),
		RetryOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "retry",
			Name:      "outcomes_total",
			Help:      "Final outcome of retried operations.",
		}, []string{"operation", "outcome"}),
		Settlements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "settlement",
			Name:      "results_total",
			Help:      "Settlements reaching a reportable state.",
		}, []string{"status"}),
		Compensations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "settlement",
			Name:      "compensations_total",
			Help:      "Compensation transactions, by result.",
		}, []string{"result"}),
		MonitorTracked: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketplace",
			Subsystem: "monitor",
			Name:      "tracked",
			Help:      "Transactions currently awaiting confirmation.",
		}),
		MonitorEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "monitor",
			Name:      "events_total",
			Help:      "Confirmation outcomes emitted.",
		}, []string{"outcome"}),
		MonitorChecks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "monitor",
			Name:      "checks_total",
			Help:      "Receipt checks performed.",
		}),
		BatchItems: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Batch units processed, by result.",
		}, []string{"result"}),
		BatchesFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "batch",
			Name:      "finished_total",
			Help:      "Batches reaching a terminal status.",
		}, []string{"status"}),
		SubmitLatencySec: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: "chain",
			Name:      "submit_seconds",
			Help:      "Latency of transfer submission including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}
