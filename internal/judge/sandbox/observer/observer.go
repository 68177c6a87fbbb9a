// Package observer defines metrics hooks for sandbox execution.
package observer

import (
	"context"
	"time"
)

// Run outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeCanceled = "canceled"
)

// MetricsRecorder records sandbox metrics. outcome is a run outcome above or
// a fault kind ("load", "entry_point", "configuration", "internal") for runs,
// and "passed", "failed", "runtime" or "timeout" for cases.
type MetricsRecorder interface {
	ObserveRun(ctx context.Context, languageID, outcome string, duration time.Duration, cases int)
	ObserveCase(ctx context.Context, languageID, outcome string, duration time.Duration)
	ObserveRespawn(ctx context.Context, languageID string, ok bool)
}

// Noop discards every observation.
type Noop struct{}

func (Noop) ObserveRun(context.Context, string, string, time.Duration, int) {}

func (Noop) ObserveCase(context.Context, string, string, time.Duration) {}

func (Noop) ObserveRespawn(context.Context, string, bool) {}
