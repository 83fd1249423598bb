package webclient

import (
	"context"
	"time"
)

// AttemptFunc runs one HTTP attempt and reports the status, body and error.
type AttemptFunc func() (status int, body []byte, err error)

// DoWithRetry retries the attempt on transient failures (non-nil error, 429,
// or 5xx) up to attempts times with a fixed delay between tries. The last
// attempt's result is returned as-is; callers decide what exhaustion means.
func DoWithRetry(ctx context.Context, attempts int, delay time.Duration, fn AttemptFunc) (int, []byte, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if delay <= 0 {
		delay = 2 * time.Second
	}

	var (
		status int
		body   []byte
		err    error
	)
	for i := 0; i < attempts; i++ {
		status, body, err = fn()
		if err == nil && status != 429 && status < 500 {
			return status, body, nil
		}
		if i == attempts-1 {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return status, body, ctx.Err()
		case <-t.C:
		}
	}
	return status, body, err
}
