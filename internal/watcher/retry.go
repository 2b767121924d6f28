package watcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/douhashi/kobito/internal/logger"
)

// retryableError はリトライ可否を自身で判断できるエラー
type retryableError interface {
	IsRetryable() bool
}

// retryDelayError はサーバーから待機時間を指定されたエラー
type retryDelayError interface {
	RetryDelay() time.Duration
}

// RetryWithBackoff は指数バックオフでリトライを実行する
func RetryWithBackoff(ctx context.Context, log logger.Logger, maxRetries int, baseDelay time.Duration, operation func() error) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	if log == nil {
		log = logger.NewNop()
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryableError(err) {
			return err
		}

		// 最後の試行の場合はリトライしない
		if attempt == maxRetries-1 {
			break
		}

		backoff := CalculateBackoff(attempt+1, baseDelay)
		if wait, ok := HandleRateLimitError(err); ok {
			backoff = wait
			log.Warn("Tracker rate limit hit, waiting until reset", "wait", backoff)
		}
		log.Debug("Retrying tracker request",
			"backoff", backoff,
			"attempt", attempt+1,
			"maxRetries", maxRetries,
			"error", err,
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled during backoff: %w", ctx.Err())
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}

// IsRetryableError はエラーがリトライ可能かどうかを判定する
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var re retryableError
	if errors.As(err, &re) {
		return re.IsRetryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// 一時的なネットワークエラー
	errStr := err.Error()
	for _, s := range []string{"timeout", "Client.Timeout exceeded", "connection refused", "connection reset", "no such host"} {
		if strings.Contains(errStr, s) {
			return true
		}
	}

	return false
}

// CalculateBackoff は指数バックオフの遅延時間を計算する
func CalculateBackoff(attempt int, baseDelay time.Duration) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	// baseDelay * 2^(attempt-1)
	delay := float64(baseDelay) * math.Pow(2, float64(attempt-1))

	// ±20%のジッター
	jitter := delay * 0.2 * (rand.Float64()*2 - 1)
	delay += jitter

	maxDelay := float64(60 * time.Second)
	if delay > maxDelay {
		delay = maxDelay
	}

	return time.Duration(delay)
}

// HandleRateLimitError はエラーが指定する待機時間を取り出す
func HandleRateLimitError(err error) (time.Duration, bool) {
	var rd retryDelayError
	if !errors.As(err, &rd) {
		return 0, false
	}

	wait := rd.RetryDelay()
	if wait <= 0 {
		return 0, false
	}
	// 少し余裕を持たせる
	return wait + time.Second, true
}
