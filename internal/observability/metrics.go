package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the sweep engine's Prometheus metrics.
type Metrics struct {
	SweepsEnqueued    *prometheus.CounterVec
	SweepsCompleted   prometheus.Counter
	SweepsFailed      *prometheus.CounterVec
	SweepsRetried     prometheus.Counter
	QueueDepth        prometheus.Gauge
	BroadcastDuration prometheus.Histogram
	LogsResolved      *prometheus.CounterVec
}

// NewMetrics registers the sweep metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SweepsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_enqueued_total",
			Help: "Sweep queue entries created, by priority.",
		}, []string{"priority"}),
		SweepsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sweep_completed_total",
			Help: "Sweeps broadcast and logged.",
		}),
		SweepsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_failed_total",
			Help: "Sweeps terminally failed, by reason.",
		}, []string{"reason"}),
		SweepsRetried: factory.NewCounter(prometheus.CounterOpts{
			Name: "sweep_retried_total",
			Help: "Transient sweep failures re-queued with backoff.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sweep_queue_depth",
			Help: "Queue entries currently in QUEUED state.",
		}),
		BroadcastDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sweep_broadcast_duration_seconds",
			Help:    "Time from build start to broadcast acknowledgement.",
			Buckets: prometheus.DefBuckets,
		}),
		LogsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_logs_resolved_total",
			Help: "Pending sweep logs resolved by reconciliation, by outcome.",
		}, []string{"outcome"}),
	}
}

// Nil-safe recording helpers; components accept a nil Metrics in tests.

func (m *Metrics) SweepEnqueued(priority string) {
	if m != nil {
		m.SweepsEnqueued.WithLabelValues(priority).Inc()
	}
}

func (m *Metrics) SweepCompleted() {
	if m != nil {
		m.SweepsCompleted.Inc()
	}
}

func (m *Metrics) SweepFailed(reason string) {
	if m != nil {
		m.SweepsFailed.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SweepRetried() {
	if m != nil {
		m.SweepsRetried.Inc()
	}
}

func (m *Metrics) SetQueueDepth(depth float64) {
	if m != nil {
		m.QueueDepth.Set(depth)
	}
}

func (m *Metrics) ObserveBroadcast(seconds float64) {
	if m != nil {
		m.BroadcastDuration.Observe(seconds)
	}
}

func (m *Metrics) LogResolved(outcome string) {
	if m != nil {
		m.LogsResolved.WithLabelValues(outcome).Inc()
	}
}
