package downloader

import (
	"context"
	"fmt"
	"time"

	"github.com/iconidentify/mediagrab/internal/domain"
)

// PollConfig bounds a poll loop over an asynchronous upstream job.
type PollConfig struct {
	MaxAttempts int
	Delay       time.Duration
	// BackoffFactor grows the delay between polls. Values <= 1 keep it fixed.
	BackoffFactor float64
	MaxDelay      time.Duration
}

// DefaultPollConfig returns four polls 1.5s apart.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		MaxAttempts: 4,
		Delay:       1500 * time.Millisecond,
	}
}

// PollFunc checks a job once. attempt starts at 1.
type PollFunc[T any] func(ctx context.Context, attempt int) (T, domain.JobState, error)

// Poll drives a job from SUBMITTED/PROCESSING to a terminal state. It
// re-polls while the job is pending, returns the value once it completes,
// and fails with ErrJobFailed or ErrPollExhausted otherwise. An error from
// fn ends the loop immediately.
func Poll[T any](ctx context.Context, cfg PollConfig, fn PollFunc[T]) (T, error) {
	var zero T

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := cfg.Delay

	for attempt := 1; attempt <= attempts; attempt++ {
		value, state, err := fn(ctx, attempt)
		if err != nil {
			return zero, err
		}

		switch state {
		case domain.JobStateCompleted:
			return value, nil
		case domain.JobStateFailed:
			return zero, domain.ErrJobFailed
		}

		if attempt == attempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
		if cfg.BackoffFactor > 1 {
			delay = time.Duration(float64(delay) * cfg.BackoffFactor)
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}

	return zero, fmt.Errorf("%w after %d attempts", domain.ErrPollExhausted, attempts)
}
