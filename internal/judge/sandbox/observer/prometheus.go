package observer

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus records sandbox metrics into a registry.
type Prometheus struct {
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	cases        *prometheus.CounterVec
	caseDuration *prometheus.HistogramVec
	respawns     *prometheus.CounterVec
}

// NewPrometheus creates and registers sandbox metrics.
// Returns nil if reg is nil.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		return nil
	}
	m := &Prometheus{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "offlinejudge",
			Subsystem: "sandbox",
			Name:      "runs_total",
			Help:      "Judging runs by language and outcome.",
		}, []string{"language", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "offlinejudge",
			Subsystem: "sandbox",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a whole run including load and teardown.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"language"}),
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "offlinejudge",
			Subsystem: "sandbox",
			Name:      "cases_total",
			Help:      "Test case executions by language and outcome.",
		}, []string{"language", "outcome"}),
		caseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "offlinejudge",
			Subsystem: "sandbox",
			Name:      "case_duration_seconds",
			Help:      "Measured execution time of a single test case.",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"language"}),
		respawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "offlinejudge",
			Subsystem: "sandbox",
			Name:      "respawns_total",
			Help:      "Interpreter restarts after a timeout or crash.",
		}, []string{"language", "ok"}),
	}
	reg.MustRegister(m.runs, m.runDuration, m.cases, m.caseDuration, m.respawns)
	return m
}

func (m *Prometheus) ObserveRun(_ context.Context, languageID, outcome string, duration time.Duration, _ int) {
	m.runs.WithLabelValues(languageID, outcome).Inc()
	m.runDuration.WithLabelValues(languageID).Observe(duration.Seconds())
}

func (m *Prometheus) ObserveCase(_ context.Context, languageID, outcome string, duration time.Duration) {
	m.cases.WithLabelValues(languageID, outcome).Inc()
	m.caseDuration.WithLabelValues(languageID).Observe(duration.Seconds())
}

func (m *Prometheus) ObserveRespawn(_ context.Context, languageID string, ok bool) {
	m.respawns.WithLabelValues(languageID, strconv.FormatBool(ok)).Inc()
}
