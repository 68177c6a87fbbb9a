package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"offlinejudge/internal/judge/model"
	"offlinejudge/internal/judge/sandbox/harness"
	"offlinejudge/internal/judge/value"
	"offlinejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Outcome is the raw result of invoking the entry point once.
type Outcome struct {
	Value    value.Value
	// Ordered is set when Value is a linked list or tree in list form.
	Ordered  bool
	Fault    model.FaultKind
	Error    string
	Duration time.Duration
}

// Invoke calls the resolved entry point with one case's arguments under the
// per-case wall-clock budget. Faults never escape as errors: they are
// reported in the Outcome and the unit stays usable for the next case.
func (u *LoadedUnit) Invoke(ctx context.Context, call harness.Request) Outcome {
	if u.closed {
		return runtimeFault("Runtime Error: sandbox unavailable: unit is closed", 0)
	}
	if u.unavailable != nil {
		return runtimeFault("Runtime Error: sandbox unavailable: "+u.unavailable.Error(), 0)
	}
	if u.session == nil {
		if err := u.respawn(ctx); err != nil {
			return runtimeFault("Runtime Error: sandbox unavailable: "+err.Error(), 0)
		}
	}

	timeout := u.loader.caseTimeout
	start := time.Now()
	resp, err := u.session.roundTrip(ctx, call, timeout)
	wall := time.Since(start)
	if err != nil {
		u.discardSession()
		var exitErr *exitError
		switch {
		case errors.Is(err, errTimeout):
			return Outcome{
				Fault:    model.FaultTimeout,
				Error:    fmt.Sprintf("Time Limit Exceeded: execution exceeded %s", timeout),
				Duration: wall,
			}
		case ctx.Err() != nil:
			return Outcome{
				Fault:    model.FaultTimeout,
				Error:    "Time Limit Exceeded: run was canceled",
				Duration: wall,
			}
		case errors.As(err, &exitErr):
			return runtimeFault("Runtime Error: "+exitErr.Error(), wall)
		default:
			return runtimeFault("Runtime Error: "+err.Error(), wall)
		}
	}

	elapsed := time.Duration(resp.ElapsedNs)
	if elapsed <= 0 || elapsed > wall {
		elapsed = wall
	}
	if !resp.OK {
		return runtimeFault(resp.Error, elapsed)
	}
	return Outcome{Value: resp.Value, Ordered: resp.Shape != "", Duration: elapsed}
}

func runtimeFault(msg string, d time.Duration) Outcome {
	return Outcome{Fault: model.FaultRuntime, Error: msg, Duration: d}
}

// respawn replaces a killed interpreter with a fresh one in the same
// workspace and re-resolves the entry point. A failure makes the unit
// permanently unavailable.
func (u *LoadedUnit) respawn(ctx context.Context) error {
	u.respawns++
	prev := u.entry
	err := u.spawn(ctx)
	if err == nil && u.entryName != "" {
		var entry EntryPoint
		entry, err = u.Resolve(ctx, u.entryName)
		if err == nil && prev != nil && !sameSignature(entry, *prev) {
			err = fmt.Errorf("entry point changed to %s after restart", entry)
		}
	}
	if err != nil {
		u.discardSession()
		if ctx.Err() == nil {
			u.unavailable = err
		}
		logger.Warn(ctx, "interpreter respawn failed", zap.Int("respawns", u.respawns), zap.Error(err))
		return err
	}
	logger.Info(ctx, "interpreter respawned", zap.Int("respawns", u.respawns))
	return nil
}

func sameSignature(a, b EntryPoint) bool {
	if a.QualifiedName != b.QualifiedName || a.VarArgs != b.VarArgs || a.VarKw != b.VarKw || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	return true
}
