package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"snapjournal/internal/config"
	"snapjournal/internal/docstore"
)

func TestRetrier(t *testing.T) {
	r := NewRetrier(config.Retry{MaxAttempts: 3, InitialBackoff: time.Millisecond})
	ctx := context.Background()

	t.Run("transient errors are retried", func(t *testing.T) {
		calls := 0
		err := r.Do(ctx, func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errUnavailable
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("attempts are capped", func(t *testing.T) {
		calls := 0
		err := r.Do(ctx, func(ctx context.Context) error {
			calls++
			return errUnavailable
		})
		assert.ErrorIs(t, err, errUnavailable)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent errors stop at once", func(t *testing.T) {
		calls := 0
		err := r.Do(ctx, func(ctx context.Context) error {
			calls++
			return docstore.ErrNotFound
		})
		assert.ErrorIs(t, err, docstore.ErrNotFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts still calls once", func(t *testing.T) {
		calls := 0
		_ = NewRetrier(config.Retry{}).Do(ctx, func(ctx context.Context) error {
			calls++
			return errUnavailable
		})
		assert.Equal(t, 1, calls)
	})
}
