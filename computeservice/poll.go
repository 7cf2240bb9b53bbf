package computeservice

import (
	"context"
	"fmt"
	"time"
)

const (
	pollInitialBackoff = time.Millisecond * 100
	pollMaxBackoff     = time.Second * 2
)

// WaitForInt polls fetch until it returns want, with exponential backoff and
// a hard deadline. Fetch errors are treated as not-ready and retried; the
// last error (or last observed value) is reported if the deadline expires.
//
// This replaces a fixed-delay settle before state checks: the state being
// awaited may be applied asynchronously after the blocking start call
// returns, so the wait is an explicit, bounded retry loop rather than an
// implicit race against a sleep.
func WaitForInt(
	ctx context.Context,
	fetch func(context.Context) (int64, error),
	want int64,
	deadline time.Duration,
) (int64, error) {
	limit := time.Now().Add(deadline)
	backoff := pollInitialBackoff

	var lastValue int64
	var lastErr error
	seen := false
	for {
		value, err := fetch(ctx)
		if err == nil {
			if value == want {
				return value, nil
			}
			lastValue, seen = value, true
		}
		lastErr = err

		if !time.Now().Add(backoff).Before(limit) {
			if lastErr != nil {
				return 0, fmt.Errorf("timed out after %s waiting for value %d, last error: %w", deadline, want, lastErr)
			}
			if seen {
				return lastValue, fmt.Errorf("timed out after %s waiting for value %d, last observed %d", deadline, want, lastValue)
			}
			return 0, fmt.Errorf("timed out after %s waiting for value %d with no successful read", deadline, want)
		}
		select {
		case <-ctx.Done():
			return lastValue, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < pollMaxBackoff {
			backoff *= 2
		}
	}
}
