package retry_test

import (
	"comparison-controller/internal/retry"
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo(t *testing.T) {
	errTransient := errors.New("transient")
	errFatal := errors.New("fatal")
	retryable := func(err error) bool {
		return errors.Is(err, errTransient)
	}

	t.Run("SucceedsAfterRetries", func(t *testing.T) {
		calls := 0
		err := retry.Do(context.Background(), retry.NewConstant(time.Millisecond, 5), retryable, func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("StopsOnNonRetryableError", func(t *testing.T) {
		calls := 0
		err := retry.Do(context.Background(), retry.NewConstant(time.Millisecond, 5), retryable, func(ctx context.Context) error {
			calls++
			return errFatal
		})
		if !errors.Is(err, errFatal) {
			t.Errorf("expected errFatal, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("GivesUp", func(t *testing.T) {
		calls := 0
		err := retry.Do(context.Background(), retry.NewConstant(time.Millisecond, 2), nil, func(ctx context.Context) error {
			calls++
			return errTransient
		})
		if !errors.Is(err, errTransient) {
			t.Errorf("expected errTransient, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := retry.Do(ctx, retry.NewConstant(time.Hour, 2), nil, func(ctx context.Context) error {
			return errTransient
		})
		if !errors.Is(err, context.Canceled) || !errors.Is(err, errTransient) {
			t.Errorf("expected both the last error and context.Canceled, got %v", err)
		}
	})
}
