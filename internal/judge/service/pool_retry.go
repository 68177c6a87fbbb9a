package service

import (
	"context"
	"strconv"
	"time"

	"offlinejudge/internal/common/mq"
	appErr "offlinejudge/pkg/errors"
	"offlinejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// poolRetryHeader counts how often a run was put back because every worker
// slot was busy. It is separate from the queue's own delivery retries.
const poolRetryHeader = "x-judge-pool-retry"

// PoolRetryPolicy decides what happens to an asynchronous run that arrives
// while the worker pool is full.
type PoolRetryPolicy struct {
	// Topic receives requeued runs; empty disables requeueing.
	Topic      string
	DeadLetter string
	// MaxAttempts bounds requeues; zero means unbounded.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// PoolRetryCount reads the requeue counter from message headers.
func PoolRetryCount(headers map[string]string) int {
	n, err := strconv.Atoi(headers[poolRetryHeader])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Backoff is BaseDelay doubled per previous requeue, capped at MaxDelay.
func (p PoolRetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Requeue waits out the backoff and republishes msg with the counter bumped.
// Once MaxAttempts is reached the run goes to DeadLetter, or JudgeQueueFull is
// returned so the consumer falls back to its delivery retries.
func (p PoolRetryPolicy) Requeue(ctx context.Context, queue mq.MessageQueue, msg *mq.Message) error {
	if queue == nil || p.Topic == "" {
		return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
	}
	if msg == nil {
		return appErr.BadRequest("message is nil")
	}
	attempt := PoolRetryCount(msg.Headers)
	fields := []zap.Field{zap.String("message_id", msg.ID), zap.Int("pool_retry", attempt)}

	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		if p.DeadLetter == "" {
			logger.Warn(ctx, "pool retries exhausted", fields...)
			return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
		}
		logger.Warn(ctx, "pool retries exhausted, dead lettering run", append(fields, zap.String("topic", p.DeadLetter))...)
		return queue.Publish(ctx, p.DeadLetter, requeued(msg, attempt))
	}

	delay := p.Backoff(attempt)
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	logger.Info(ctx, "run requeued for a free worker", append(fields, zap.Duration("delay", delay), zap.String("topic", p.Topic))...)
	return queue.Publish(ctx, p.Topic, requeued(msg, attempt+1))
}

// requeued copies msg with a fresh timestamp so expiry restarts, and resets
// delivery retries.
func requeued(msg *mq.Message, poolRetry int) *mq.Message {
	out := mq.NewMessage(msg.ID, msg.Body)
	out.MaxRetries = msg.MaxRetries
	out.Expiration = msg.Expiration
	for k, v := range msg.Headers {
		out.SetHeader(k, v)
	}
	out.SetHeader(poolRetryHeader, strconv.Itoa(poolRetry))
	return out
}

func (s *Service) requeueForPoolFull(ctx context.Context, msg *mq.Message) error {
	if s.queue != nil && s.poolRetry.Topic != "" {
		s.metrics.poolRequeued()
	}
	return s.poolRetry.Requeue(ctx, s.queue, msg)
}
