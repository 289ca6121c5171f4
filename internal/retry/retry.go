// Package retry runs an operation until it succeeds, a non-retryable error
// occurs, the attempt budget is spent or the context ends.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config defines retry behavior.
type Config struct {
	MaxAttempts int                             // Total attempts including the first
	Delay       func(attempt int) time.Duration // Wait after failed attempt n (0-based)
	RetryIf     func(error) bool                // Nil retries every error
}

// Linear returns a delay function waiting initial*(attempt+1).
func Linear(initial time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return initial * time.Duration(attempt+1)
	}
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("retries exhausted after %d attempts", e.Attempts)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// Do executes fn according to cfg. fn receives the 0-based attempt number.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return err
		}
		if errors.Is(err, context.Canceled) {
			return err
		}

		if attempt < cfg.MaxAttempts-1 && cfg.Delay != nil {
			select {
			case <-time.After(cfg.Delay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return &ExhaustedError{Attempts: cfg.MaxAttempts, LastErr: lastErr}
}
