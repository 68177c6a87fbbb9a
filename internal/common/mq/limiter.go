package mq

import "context"

// TokenLimiter is a counting semaphore. The judge uses one to cap concurrent
// runs and to stop consumers from fetching runs no worker can take.
type TokenLimiter struct {
	held chan struct{}
}

// NewTokenLimiter allows size concurrent holders; size below one means one.
func NewTokenLimiter(size int) *TokenLimiter {
	return &TokenLimiter{held: make(chan struct{}, max(size, 1))}
}

// Acquire blocks for a slot until ctx is done.
func (l *TokenLimiter) Acquire(ctx context.Context) error {
	select {
	case l.held <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *TokenLimiter) TryAcquire() bool {
	select {
	case l.held <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot. Releasing more than was acquired is a no-op.
func (l *TokenLimiter) Release() {
	select {
	case <-l.held:
	default:
	}
}

func (l *TokenLimiter) Available() int { return cap(l.held) - len(l.held) }

func (l *TokenLimiter) Capacity() int { return cap(l.held) }
