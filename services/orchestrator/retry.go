package orchestrator

import (
	"context"
	"errors"
	"time"
)

// BackoffFunc returns the delay to wait after the given failed attempt (1-based)
type BackoffFunc func(attempt int) time.Duration

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// LinearBackoff waits base, 2*base, 3*base, ... between attempts
func LinearBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// ContextSleep is the production SleepFunc
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; Retry returns it immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retry calls op until it succeeds, returns a Permanent error, or
// maxAttempts calls have been made. backoff(n) is slept after the nth
// failure, never after the last one. It returns the number of calls made
// and the last error, unwrapped from Permanent.
func Retry(ctx context.Context, op func(ctx context.Context, attempt int) error, maxAttempts int, backoff BackoffFunc, sleep SleepFunc) (int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if sleep == nil {
		sleep = ContextSleep
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}
		var p *permanentError
		if errors.As(lastErr, &p) {
			return attempt, p.err
		}
		if ctx.Err() != nil {
			return attempt, lastErr
		}
		if attempt == maxAttempts {
			break
		}
		if backoff != nil {
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return attempt, lastErr
			}
		}
	}
	return maxAttempts, lastErr
}
