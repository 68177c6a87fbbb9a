package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records worker pool usage. A nil *Metrics records nothing.
type Metrics struct {
	inflight  prometheus.Gauge
	queueWait prometheus.Histogram
	rejected  prometheus.Counter
	requeued  prometheus.Counter
}

// NewMetrics creates and registers pool metrics. Returns nil if reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "offlinejudge",
			Subsystem: "pool",
			Name:      "inflight_runs",
			Help:      "Runs currently holding a worker slot.",
		}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "offlinejudge",
			Subsystem: "pool",
			Name:      "queue_wait_seconds",
			Help:      "Time spent waiting for a worker slot.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "offlinejudge",
			Subsystem: "pool",
			Name:      "rejected_total",
			Help:      "Runs rejected because no worker slot became free in time.",
		}),
		requeued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "offlinejudge",
			Subsystem: "pool",
			Name:      "requeued_total",
			Help:      "Queued runs republished because the pool was full.",
		}),
	}
	reg.MustRegister(m.inflight, m.queueWait, m.rejected, m.requeued)
	return m
}

func (m *Metrics) runStarted() {
	if m != nil {
		m.inflight.Inc()
	}
}

func (m *Metrics) runFinished() {
	if m != nil {
		m.inflight.Dec()
	}
}

func (m *Metrics) observeQueueWait(d time.Duration) {
	if m != nil {
		m.queueWait.Observe(d.Seconds())
	}
}

func (m *Metrics) poolRejected() {
	if m != nil {
		m.rejected.Inc()
	}
}

func (m *Metrics) poolRequeued() {
	if m != nil {
		m.requeued.Inc()
	}
}
