package service

import (
	"context"
	"errors"
	"time"

	"github.com/googleapis/gax-go/v2"

	"snapjournal/internal/config"
	"snapjournal/internal/docstore"
)

// Retrier reruns idempotent store writes with exponential backoff.
type Retrier struct {
	maxAttempts int
	backoff     gax.Backoff
}

func NewRetrier(cfg config.Retry) *Retrier {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	return &Retrier{
		maxAttempts: attempts,
		backoff: gax.Backoff{
			Initial:    initial,
			Max:        32 * initial,
			Multiplier: 2,
		},
	}
}

// Do calls fn until it succeeds, returns a permanent error or the attempt
// budget is spent. The last error is returned.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return gax.Invoke(ctx, func(ctx context.Context, _ gax.CallSettings) error {
		return fn(ctx)
	}, gax.WithRetry(func() gax.Retryer {
		return &attemptRetryer{max: r.maxAttempts, backoff: r.backoff}
	}))
}

type attemptRetryer struct {
	max      int
	attempts int
	backoff  gax.Backoff
}

func (a *attemptRetryer) Retry(err error) (time.Duration, bool) {
	a.attempts++
	if a.attempts >= a.max || !retryable(err) {
		return 0, false
	}
	return a.backoff.Pause(), true
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, docstore.ErrNotFound),
		errors.Is(err, docstore.ErrAlreadyExists),
		errors.Is(err, ErrInvalidInput):
		return false
	}
	return true
}
