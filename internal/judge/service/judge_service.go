// Package service schedules judging runs onto a bounded worker pool, both for
// synchronous requests and for runs consumed from the message queue.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"offlinejudge/internal/common/mq"
	"offlinejudge/internal/judge/model"
	"offlinejudge/internal/judge/problemstore"
	"offlinejudge/internal/judge/repository"
	"offlinejudge/internal/judge/sandbox"
	appErr "offlinejudge/pkg/errors"
	"offlinejudge/pkg/utils/contextkey"
	"offlinejudge/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultQueueWait    = 2 * time.Second
	defaultMaxCodeBytes = 64 << 10
)

// Runner judges one submission. *sandbox.Worker implements it.
type Runner interface {
	Run(ctx context.Context, req sandbox.RunRequest) (*model.Report, error)
}

// Service handles judge runs.
type Service struct {
	runner        Runner
	problems      problemstore.Reader
	runs          *repository.RunRepository
	publisher     repository.RunPublisher
	slots         *mq.TokenLimiter
	metrics       *Metrics
	queueWait     time.Duration
	runTimeout    time.Duration
	statusTimeout time.Duration
	maxCodeBytes  int

	queue     mq.MessageQueue
	poolRetry PoolRetryPolicy
}

// Config holds service dependencies and settings. Runs, Publisher and Queue
// are only needed for asynchronous runs.
type Config struct {
	Runner        Runner
	Problems      problemstore.Reader
	Runs          *repository.RunRepository
	Publisher     repository.RunPublisher
	Metrics       *Metrics
	PoolSize      int
	QueueWait     time.Duration
	RunTimeout    time.Duration
	StatusTimeout time.Duration
	MaxCodeBytes  int

	Queue     mq.MessageQueue
	PoolRetry PoolRetryPolicy
}

// NewService creates a new judge service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Problems == nil {
		return nil, fmt.Errorf("problem store is required")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	queueWait := cfg.QueueWait
	if queueWait <= 0 {
		queueWait = defaultQueueWait
	}
	maxCode := cfg.MaxCodeBytes
	if maxCode <= 0 {
		maxCode = defaultMaxCodeBytes
	}
	return &Service{
		runner:        cfg.Runner,
		problems:      cfg.Problems,
		runs:          cfg.Runs,
		publisher:     cfg.Publisher,
		slots:         mq.NewTokenLimiter(poolSize),
		metrics:       cfg.Metrics,
		queueWait:     queueWait,
		runTimeout:    cfg.RunTimeout,
		statusTimeout: cfg.StatusTimeout,
		maxCodeBytes:  maxCode,
		queue:         cfg.Queue,
		poolRetry:     cfg.PoolRetry,
	}, nil
}

// AsyncEnabled reports whether runs can be submitted for background judging.
func (s *Service) AsyncEnabled() bool {
	return s.runs != nil && s.publisher != nil
}

// Run judges sub synchronously. progress may be nil.
func (s *Service) Run(ctx context.Context, sub model.Submission, progress sandbox.ProgressReporter) (*model.Report, error) {
	runID := uuid.NewString()
	ctx = withRunContext(ctx, runID, sub.QuestionID)
	problem, err := s.lookupProblem(ctx, sub)
	if err != nil {
		return nil, err
	}
	if err := s.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer s.releaseSlot()
	return s.execute(ctx, runID, problem, sub.Code, progress)
}

// Submit validates sub, stores a pending status and enqueues the run.
func (s *Service) Submit(ctx context.Context, sub model.Submission) (string, error) {
	if !s.AsyncEnabled() {
		return "", appErr.New(appErr.ServiceUnavailable).WithMessage("asynchronous runs are not configured")
	}
	runID := uuid.NewString()
	ctx = withRunContext(ctx, runID, sub.QuestionID)
	if _, err := s.lookupProblem(ctx, sub); err != nil {
		return "", err
	}
	now := time.Now().Unix()
	pending := model.RunStatus{
		RunID:      runID,
		QuestionID: sub.QuestionID,
		State:      model.RunPending,
		CreatedAt:  now,
	}
	if err := s.createStatus(ctx, pending); err != nil {
		return "", err
	}
	msg := model.RunMessage{
		RunID:      runID,
		QuestionID: sub.QuestionID,
		Code:       sub.Code,
		TraceID:    traceIDFrom(ctx),
		CreatedAt:  now,
	}
	if err := s.publisher.PublishRun(ctx, msg); err != nil {
		s.markFailed(ctx, pending, err)
		return "", err
	}
	logger.Info(ctx, "run submitted")
	return runID, nil
}

// GetRun returns the stored status of an asynchronous run.
func (s *Service) GetRun(ctx context.Context, runID string) (model.RunStatus, error) {
	if s.runs == nil {
		return model.RunStatus{}, appErr.New(appErr.ServiceUnavailable).WithMessage("asynchronous runs are not configured")
	}
	return s.runs.Get(ctx, runID)
}

// HandleMessage judges one queued run. A nil return commits the message;
// runs whose outcome is final, including judged faults, are never retried.
func (s *Service) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	var payload model.RunMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		logger.Warn(ctx, "drop undecodable run message", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	if payload.RunID == "" || payload.QuestionID == "" {
		logger.Warn(ctx, "drop run message without ids", zap.String("message_id", msg.ID))
		return nil
	}
	if payload.TraceID != "" {
		ctx = context.WithValue(ctx, contextkey.TraceID, payload.TraceID)
	}
	ctx = withRunContext(ctx, payload.RunID, payload.QuestionID)

	status := model.RunStatus{
		RunID:      payload.RunID,
		QuestionID: payload.QuestionID,
		State:      model.RunPending,
		CreatedAt:  payload.CreatedAt,
	}
	if stored, err := s.GetRun(ctx, payload.RunID); err == nil && stored.State.Terminal() {
		logger.Info(ctx, "skip run that already finished", zap.String("status", string(stored.State)))
		return nil
	}

	if err := s.acquireSlot(ctx); err != nil {
		if appErr.Is(err, appErr.JudgeQueueFull) {
			return s.requeueForPoolFull(ctx, msg)
		}
		return err
	}
	defer s.releaseSlot()

	status.State = model.RunRunning
	if err := s.persistStatus(ctx, status); err != nil {
		return err
	}

	lastAttempt := msg.MaxRetries > 0 && msg.RetryCount >= msg.MaxRetries
	sub := model.Submission{QuestionID: payload.QuestionID, Code: payload.Code}
	problem, err := s.lookupProblem(ctx, sub)
	if err != nil {
		return s.handleFailure(ctx, status, err, lastAttempt)
	}
	rep, err := s.execute(ctx, payload.RunID, problem, payload.Code, nil)
	if err != nil {
		return s.handleFailure(ctx, status, err, lastAttempt)
	}

	status.State = model.RunFinished
	status.Report = rep
	status.FinishedAt = time.Now().Unix()
	return s.persistStatus(ctx, status)
}

func (s *Service) execute(ctx context.Context, runID string, problem *model.Problem, code string, progress sandbox.ProgressReporter) (*model.Report, error) {
	ctxRun := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctxRun, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}
	s.metrics.runStarted()
	defer s.metrics.runFinished()
	return s.runner.Run(ctxRun, sandbox.RunRequest{
		RunID:    runID,
		Problem:  problem,
		Code:     code,
		Progress: progress,
	})
}

func withRunContext(ctx context.Context, runID, questionID string) context.Context {
	ctx = context.WithValue(ctx, contextkey.RunID, runID)
	return context.WithValue(ctx, contextkey.QuestionID, questionID)
}

func traceIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(contextkey.TraceID).(string); ok {
		return v
	}
	return ""
}
