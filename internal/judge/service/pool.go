package service

import (
	"context"
	"errors"
	"time"

	appErr "offlinejudge/pkg/errors"
)

// acquireSlot waits up to queueWait for a free worker.
func (s *Service) acquireSlot(ctx context.Context) error {
	start := time.Now()
	if s.slots.TryAcquire() {
		s.metrics.observeQueueWait(0)
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.queueWait)
	defer cancel()
	if err := s.slots.Acquire(waitCtx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return contextError(ctxErr)
		}
		s.metrics.poolRejected()
		return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
	}
	s.metrics.observeQueueWait(time.Since(start))
	return nil
}

func (s *Service) releaseSlot() {
	s.slots.Release()
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return appErr.Wrap(err, appErr.Timeout)
	}
	return appErr.Wrap(err, appErr.Canceled)
}
