// Package retry provides a small exponential-backoff retry helper.
//
// It backs exactly two call sites in this repository: the database
// gateway's single reconnect attempt after a "server gone away" error
// (MaxAttempts=1, i.e. no backoff at all — at most one retry at that
// layer) and the broker dial loop at process startup (bounded attempts
// with backoff, since the broker may not be up yet when a consumer
// process starts).
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMaxAttemptsExceeded is returned when every attempt failed.
var ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")

// Config configures retry behavior.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Once returns a Config that performs exactly one attempt, no retry, no
// delay — the database gateway redials the connection once and lets the
// caller retry the statement itself afterward.
func Once() Config {
	return Config{MaxAttempts: 1, InitialDelay: 0, MaxDelay: 0, Multiplier: 1}
}

// Dial returns a Config suited to dialing an external broker at startup.
func Dial(maxAttempts int) Config {
	return Config{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// Do executes fn, retrying per cfg until it succeeds, the attempts are
// exhausted, or ctx is cancelled.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := fn(attempt); err != nil {
			lastErr = err
			if attempt == cfg.MaxAttempts {
				break
			}
			if delay > 0 {
				wait := time.Duration(float64(delay) * math.Pow(cfg.Multiplier, float64(attempt-1)))
				if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
					wait = cfg.MaxDelay
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
			}
			continue
		}
		return nil
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, cfg.MaxAttempts, lastErr)
}
