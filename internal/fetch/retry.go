package fetch

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// RetryPolicy decides whether a failed attempt is worth repeating and how
// long to back off before doing so.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewRetryPolicy builds a policy from explicit knobs.
func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// DefaultRetryPolicy returns the policy used for dealership pages.
func DefaultRetryPolicy() *RetryPolicy {
	return NewRetryPolicy(4, 500*time.Millisecond, 8*time.Second)
}

// MaxAttempts reports the attempt budget.
func (p *RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry decides whether the failed attempt is retryable. A 404 means
// the resource is definitively absent and is never retried.
func (p *RetryPolicy) ShouldRetry(status int, err error, attempt int) bool {
	if attempt+1 >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if status == http.StatusNotFound {
		return false
	}
	return true
}

// Backoff returns the wait duration before the next attempt, doubling per
// attempt from the base delay.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.baseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.maxDelay {
			return p.maxDelay
		}
	}
	return delay
}
