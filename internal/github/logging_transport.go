package github

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/douhashi/kobito/internal/logger"
)

// loggingRoundTripper はGitHub APIへのリクエストとレスポンスをデバッグログに出す
type loggingRoundTripper struct {
	base   http.RoundTripper
	logger logger.Logger
}

// RoundTrip はHTTPリクエストを実行し、所要時間とレート制限の残量を記録する
func (rt *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	rt.logRequest(req)

	base := rt.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)

	duration := time.Since(start)

	if err != nil {
		rt.logger.Error("github_api_error",
			"method", req.Method,
			"url", req.URL.String(),
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return nil, err
	}

	rt.logResponse(resp, duration)

	return resp, nil
}

func (rt *loggingRoundTripper) logRequest(req *http.Request) {
	fields := []interface{}{
		"method", req.Method,
		"url", req.URL.String(),
	}

	if auth := req.Header.Get("Authorization"); auth != "" {
		fields = append(fields, "auth_header", maskAuthHeader(auth))
	}

	rt.logger.Debug("github_api_request", fields...)
}

func (rt *loggingRoundTripper) logResponse(resp *http.Response, duration time.Duration) {
	fields := []interface{}{
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
	}

	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		fields = append(fields, "rate_limit_remaining", remaining)
	}
	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		fields = append(fields, "rate_limit_reset", reset)
	}

	// エラー時のみボディの先頭を残す
	if resp.StatusCode >= 400 && resp.Body != nil {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			rt.logger.Error("failed_to_read_response_body", "error", err.Error())
		} else {
			resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			preview := string(bodyBytes)
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			fields = append(fields, "body_preview", preview)
		}
	}

	rt.logger.Debug("github_api_response", fields...)
}

// maskAuthHeader はAuthorizationヘッダーの値をマスキングする
func maskAuthHeader(auth string) string {
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) == 2 {
		return fmt.Sprintf("%s [REDACTED]", parts[0])
	}
	return "[REDACTED]"
}
