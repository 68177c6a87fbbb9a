// Package sandbox runs one submission against a problem's test cases in a
// separate interpreter process and builds the report.
package sandbox

import (
	"context"
	"errors"
	"time"

	"offlinejudge/internal/judge/comparator"
	"offlinejudge/internal/judge/model"
	"offlinejudge/internal/judge/report"
	"offlinejudge/internal/judge/sandbox/observer"
	appErr "offlinejudge/pkg/errors"
	"offlinejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Stage is a step of the run state machine.
type Stage string

const (
	StageLoading   Stage = "loading"
	StageResolving Stage = "resolving"
	StageExecuting Stage = "executing"
	StageReporting Stage = "reporting"
	StageDone      Stage = "done"
)

// ProgressReporter receives stage transitions and per-case results while a
// run is in flight. Implementations must not block for long.
type ProgressReporter interface {
	OnStage(ctx context.Context, stage Stage)
	OnResult(ctx context.Context, res model.ExecutionResult)
}

// RunRequest is one judging request for the worker.
type RunRequest struct {
	RunID    string
	Problem  *model.Problem
	Code     string
	Progress ProgressReporter
}

// Worker drives the run state machine:
// Loading -> Resolving -> Executing(i) -> Reporting -> Done.
type Worker struct {
	loader     *Loader
	comparator *comparator.Comparator
	metrics    observer.MetricsRecorder
}

// NewWorker creates a worker. A nil recorder disables metrics.
func NewWorker(loader *Loader, cmp *comparator.Comparator, metrics observer.MetricsRecorder) *Worker {
	if cmp == nil {
		cmp = comparator.New(0)
	}
	if metrics == nil {
		metrics = observer.Noop{}
	}
	return &Worker{loader: loader, comparator: cmp, metrics: metrics}
}

// Run judges req. Load, entry point and configuration faults end the run with
// an *appErr.Error and no report; per-case faults are recorded in the report.
// A canceled context stops the run between cases and returns the context error.
func (w *Worker) Run(ctx context.Context, req RunRequest) (*model.Report, error) {
	if req.Problem == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("problem is required")
	}
	start := time.Now()
	lang := w.loader.LanguageID()
	progress := req.Progress
	if progress == nil {
		progress = noProgress{}
	}
	problem := req.Problem

	rep, err := w.run(ctx, req, progress)
	outcome := observer.OutcomeAccepted
	switch {
	case err != nil && ctx.Err() != nil:
		outcome = observer.OutcomeCanceled
	case err != nil:
		outcome = appErr.GetCode(err).Kind()
	case !rep.AllPassed:
		outcome = observer.OutcomeRejected
	}
	w.metrics.ObserveRun(ctx, lang, outcome, time.Since(start), len(problem.TestCases))

	if err != nil {
		logger.Info(ctx, "run ended without report",
			zap.String("outcome", outcome),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	logger.Info(ctx, "run finished",
		zap.Int("passed", rep.PassedCount),
		zap.Int("total", rep.TotalCount),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rep, nil
}

func (w *Worker) run(ctx context.Context, req RunRequest, progress ProgressReporter) (*model.Report, error) {
	problem := req.Problem
	cases := problem.TestCases

	progress.OnStage(ctx, StageLoading)
	unit, err := w.loader.Load(ctx, req.RunID, req.Code, len(cases))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unit.Close(); err != nil {
			logger.Warn(ctx, "remove workspace failed", zap.String("workdir", unit.WorkDir()), zap.Error(err))
		}
	}()

	progress.OnStage(ctx, StageResolving)
	entry, err := unit.Resolve(ctx, problem.FunctionName)
	if err != nil {
		return nil, err
	}
	binding, err := DecideBinding(entry, cases)
	if err != nil {
		return nil, err
	}
	binding = binding.Ordered(problem.ParamNames(), cases)
	logger.Debug(ctx, "entry point resolved",
		zap.String("entry", entry.String()),
		zap.Stringer("binding", binding.Mode),
	)

	progress.OnStage(ctx, StageExecuting)
	builder := report.NewBuilder(len(cases))
	lang := w.loader.LanguageID()
	for i, tc := range cases {
		if err := ctx.Err(); err != nil {
			return nil, contextError(err)
		}
		respawns := unit.Respawns()
		out := unit.Invoke(ctx, binding.Call(tc.Input))
		if unit.Respawns() > respawns {
			w.metrics.ObserveRespawn(ctx, lang, unit.unavailable == nil)
		}

		res := model.ExecutionResult{
			ID:       i + 1,
			Input:    tc.Input,
			Expected: tc.Output,
			Duration: model.Duration(out.Duration),
			Fault:    out.Fault,
		}
		caseOutcome := string(out.Fault)
		if out.Fault != model.FaultNone {
			msg := out.Error
			res.Error = &msg
			logger.Debug(ctx, "case faulted", zap.Int("case", res.ID), zap.String("fault", caseOutcome), zap.String("error", msg))
		} else {
			res.Actual = out.Value
			if out.Ordered {
				res.Passed = w.comparator.MatchOrdered(out.Value, tc.Output)
			} else {
				res.Passed = w.comparator.Match(out.Value, tc.Output)
			}
			caseOutcome = "failed"
			if res.Passed {
				caseOutcome = "passed"
			}
		}
		w.metrics.ObserveCase(ctx, lang, caseOutcome, out.Duration)
		builder.Add(res)
		progress.OnResult(ctx, res)
	}
	if err := ctx.Err(); err != nil {
		return nil, contextError(err)
	}

	progress.OnStage(ctx, StageReporting)
	rep := builder.Build()
	progress.OnStage(ctx, StageDone)
	return rep, nil
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return appErr.Wrap(err, appErr.Timeout)
	}
	return appErr.Wrap(err, appErr.Canceled)
}

type noProgress struct{}

func (noProgress) OnStage(context.Context, Stage) {}

func (noProgress) OnResult(context.Context, model.ExecutionResult) {}
