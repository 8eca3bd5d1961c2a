package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tranche"

// Metrics is safe to use as a nil pointer, in which case nothing is recorded.
type Metrics struct {
	Attempts        *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	RefreshFailures prometheus.Counter
	ActiveMilestone prometheus.Gauge
}

func New(registerer prometheus.Registerer) *Metrics {
	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Terminal transaction attempts by action and outcome",
		},
		[]string{"action", "outcome"},
	)
	refreshDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of campaign snapshot refreshes",
			Buckets:   prometheus.DefBuckets,
		},
	)
	refreshFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_failures_total",
			Help:      "Snapshot refreshes that kept the previous snapshot",
		},
	)
	activeMilestone := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_milestone",
			Help:      "Id of the active milestone, -1 when none",
		},
	)
	registerer.MustRegister(attempts, refreshDuration, refreshFailures, activeMilestone)

	return &Metrics{
		Attempts:        attempts,
		RefreshDuration: refreshDuration,
		RefreshFailures: refreshFailures,
		ActiveMilestone: activeMilestone,
	}
}

func (m *Metrics) ObserveAttempt(action, outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) ObserveRefresh(duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.RefreshDuration.Observe(duration.Seconds())
	if failed {
		m.RefreshFailures.Inc()
	}
}

func (m *Metrics) SetActiveMilestone(id uint64, ok bool) {
	if m == nil {
		return
	}
	if !ok {
		m.ActiveMilestone.Set(-1)
		return
	}
	m.ActiveMilestone.Set(float64(id))
}
