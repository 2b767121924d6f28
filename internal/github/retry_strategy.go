package github

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/douhashi/kobito/internal/logger"
)

// RetryStrategy defines the retry behavior for GitHub API operations
type RetryStrategy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultRetryStrategy returns a default retry strategy
func DefaultRetryStrategy() RetryStrategy {
	return RetryStrategy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// NewRetryStrategy returns the default strategy with the configured attempts and base delay
func NewRetryStrategy(maxAttempts int, initialDelay time.Duration) RetryStrategy {
	rs := DefaultRetryStrategy()
	if maxAttempts > 0 {
		rs.MaxAttempts = maxAttempts
	}
	if initialDelay > 0 {
		rs.InitialDelay = initialDelay
	}
	return rs
}

// GetRetryDelay calculates the delay for a given attempt
func (rs *RetryStrategy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(rs.InitialDelay) * math.Pow(rs.Multiplier, float64(attempt-1))

	if delay > float64(rs.MaxDelay) {
		delay = float64(rs.MaxDelay)
	}

	// Add up to 25% jitter
	if rs.Jitter && delay > 0 {
		jitter := rand.Float64() * 0.25 * delay
		delay += jitter
	}

	return time.Duration(delay)
}

// ShouldRetry determines if an operation should be retried based on the error
func (rs *RetryStrategy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= rs.MaxAttempts {
		return false
	}

	var ghErr *GitHubError
	if !errors.As(err, &ghErr) {
		// For non-GitHubError, retry on a limited basis
		return attempt < 2
	}

	return ghErr.IsRetryable()
}

// RetryWithStrategy executes a function with retry logic
// Errors returned by operation are classified before the retry decision
func RetryWithStrategy(ctx context.Context, strategy RetryStrategy, log logger.Logger, operation func() error) error {
	if log == nil {
		log = logger.NewNop()
	}

	var lastErr error

	for attempt := 1; attempt <= strategy.MaxAttempts; attempt++ {
		err := ClassifyError(operation())
		if err == nil {
			return nil
		}

		lastErr = err

		if !strategy.ShouldRetry(err, attempt) {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := strategy.GetRetryDelay(attempt)
		var ghErr *GitHubError
		if errors.As(err, &ghErr) && ghErr.RetryAfter > 0 {
			if ghErr.RetryAfter > strategy.MaxDelay {
				// Leave long waits to the caller
				if IsRateLimitError(err) {
					log.Warn("GitHub API rate limit exceeded",
						"retryAfter", ghErr.RetryAfter,
						"maxDelay", strategy.MaxDelay,
					)
				}
				return err
			}
			delay = ghErr.RetryAfter
		}

		log.Debug("Retrying GitHub API request",
			"attempt", attempt,
			"maxAttempts", strategy.MaxAttempts,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}
