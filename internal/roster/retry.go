package roster

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors.
var (
	// ErrNetwork marks connection failures and 5xx/429 responses.
	ErrNetwork = errors.New("network error")

	// ErrEmptyFeed is returned when a feed has no content at all.
	ErrEmptyFeed = errors.New("empty roster feed")

	// ErrNoSources is returned when no usable roster source is configured.
	ErrNoSources = errors.New("no roster sources configured")
)

const retryAttempts = 3

// retryableError marks an error as worth another attempt.
type retryableError struct{ err error }

func retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// retryWithBackoff calls fn up to retryAttempts times, doubling delay
// between attempts. Only errors wrapped with retryable are retried.
func retryWithBackoff(ctx context.Context, delay time.Duration, fn func() error) error {
	var lastErr error
	for i := 0; i < retryAttempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		if i < retryAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}
