package retry

import (
	"context"
	"errors"
	"time"
)

var errBodyNotRewindable = errors.New("request body cannot be replayed for retry")

// Do calls fn until it succeeds, retryable reports false for its error, or
// strategy gives up. The last error is returned.
func Do(ctx context.Context, strategy Strategy, retryable func(error) bool, fn func(context.Context) error) error {
	for retryCount := uint(0); ; retryCount++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}

		sleep, exceeded := strategy.Sleep(retryCount)
		if exceeded {
			return err
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
