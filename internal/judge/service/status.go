package service

import (
	"context"
	"time"

	"offlinejudge/internal/judge/model"
	appErr "offlinejudge/pkg/errors"
	"offlinejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

func (s *Service) statusContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.statusTimeout > 0 {
		return context.WithTimeout(context.WithoutCancel(ctx), s.statusTimeout)
	}
	return context.WithCancel(context.WithoutCancel(ctx))
}

func (s *Service) persistStatus(ctx context.Context, status model.RunStatus) error {
	if s.runs == nil {
		return nil
	}
	ctxStatus, cancel := s.statusContext(ctx)
	defer cancel()
	return s.runs.Save(ctxStatus, status)
}

func (s *Service) createStatus(ctx context.Context, status model.RunStatus) error {
	ctxStatus, cancel := s.statusContext(ctx)
	defer cancel()
	return s.runs.Create(ctxStatus, status)
}

// markFailed stores status as Failed with err's kind and message.
func (s *Service) markFailed(ctx context.Context, status model.RunStatus, err error) {
	e := appErr.GetError(err)
	status.State = model.RunFailed
	status.Report = nil
	status.Error = &model.RunError{Kind: e.Code.Kind(), Message: e.Error()}
	status.FinishedAt = time.Now().Unix()
	if saveErr := s.persistStatus(ctx, status); saveErr != nil {
		logger.Warn(ctx, "update failure status failed", zap.Error(saveErr))
	}
}

// handleFailure records a run that ended without a report. Outcomes caused by
// the submission or the problem are final. Other failures are returned so the
// message is redelivered; the run goes back to Pending unless this was its
// last delivery.
func (s *Service) handleFailure(ctx context.Context, status model.RunStatus, err error, lastAttempt bool) error {
	if finalOutcome(err) {
		s.markFailed(ctx, status, err)
		return nil
	}
	if lastAttempt && !appErr.Is(err, appErr.Canceled) {
		s.markFailed(ctx, status, err)
		return err
	}
	status.State = model.RunPending
	if saveErr := s.persistStatus(ctx, status); saveErr != nil {
		logger.Warn(ctx, "reset run status failed", zap.Error(saveErr))
	}
	return err
}

func finalOutcome(err error) bool {
	if appErr.Terminal(err) {
		return true
	}
	switch appErr.GetCode(err) {
	case appErr.ProblemNotFound, appErr.CodeTooLarge, appErr.ValidationFailed, appErr.Timeout:
		return true
	}
	return false
}
