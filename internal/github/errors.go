package github

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	gh "github.com/google/go-github/v50/github"
)

// GitHubErrorType represents the type of GitHub API error
type GitHubErrorType int

const (
	// ErrorTypeRateLimit indicates rate limit exceeded
	ErrorTypeRateLimit GitHubErrorType = iota
	// ErrorTypeNetworkTimeout indicates network timeout
	ErrorTypeNetworkTimeout
	// ErrorTypeAuthentication indicates authentication failure
	ErrorTypeAuthentication
	// ErrorTypeNotFound indicates resource not found
	ErrorTypeNotFound
	// ErrorTypeServerError indicates server error (5xx)
	ErrorTypeServerError
	// ErrorTypeUnknown indicates unknown error type
	ErrorTypeUnknown
)

// String returns the string representation of the error type
func (t GitHubErrorType) String() string {
	switch t {
	case ErrorTypeRateLimit:
		return "RateLimit"
	case ErrorTypeNetworkTimeout:
		return "NetworkTimeout"
	case ErrorTypeAuthentication:
		return "Authentication"
	case ErrorTypeNotFound:
		return "NotFound"
	case ErrorTypeServerError:
		return "ServerError"
	default:
		return "Unknown"
	}
}

// GitHubError represents a structured GitHub API error
type GitHubError struct {
	Type        GitHubErrorType
	StatusCode  int
	Message     string
	RetryAfter  time.Duration
	OriginalErr error
}

// Error implements the error interface
func (e *GitHubError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("GitHub API error [%s]: %s (original: %v)", e.Type, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("GitHub API error [%s]: %s", e.Type, e.Message)
}

// Unwrap returns the original error
func (e *GitHubError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns true if the error is retryable
func (e *GitHubError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeNetworkTimeout, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// RetryDelay returns the wait time requested by the API
func (e *GitHubError) RetryDelay() time.Duration {
	return e.RetryAfter
}

// IsRateLimitError checks if the error is a rate limit error
func IsRateLimitError(err error) bool {
	return hasType(err, ErrorTypeRateLimit)
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsAuthenticationError checks if the error is an authentication error
func IsAuthenticationError(err error) bool {
	return hasType(err, ErrorTypeAuthentication)
}

// withAuthHint は認証エラーに設定の確認方法を添える
func withAuthHint(err error) error {
	if IsAuthenticationError(err) {
		return fmt.Errorf("check github.token or GITHUB_TOKEN: %w", err)
	}
	return err
}

func hasType(err error, t GitHubErrorType) bool {
	var ghErr *GitHubError
	if errors.As(err, &ghErr) {
		return ghErr.Type == t
	}
	return false
}

// ClassifyError converts go-github errors into a GitHubError
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var ghErr *GitHubError
	if errors.As(err, &ghErr) {
		return err
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		e := &GitHubError{
			Type:        ErrorTypeRateLimit,
			StatusCode:  http.StatusForbidden,
			Message:     rateErr.Message,
			OriginalErr: err,
		}
		if reset := rateErr.Rate.Reset.Time; !reset.IsZero() {
			if wait := time.Until(reset); wait > 0 {
				e.RetryAfter = wait
			}
		}
		return e
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &GitHubError{
			Type:        ErrorTypeRateLimit,
			StatusCode:  http.StatusForbidden,
			Message:     abuseErr.Message,
			RetryAfter:  abuseErr.GetRetryAfter(),
			OriginalErr: err,
		}
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return classifyStatus(respErr.Response.StatusCode, respErr.Message, err)
	}

	return ParseErrorMessage(err.Error(), err)
}

func classifyStatus(status int, message string, err error) *GitHubError {
	e := &GitHubError{StatusCode: status, Message: message, OriginalErr: err}
	switch {
	case status == http.StatusUnauthorized:
		e.Type = ErrorTypeAuthentication
	case status == http.StatusNotFound:
		e.Type = ErrorTypeNotFound
	case status == http.StatusTooManyRequests:
		e.Type = ErrorTypeRateLimit
	case status >= 500 && status < 600:
		e.Type = ErrorTypeServerError
	default:
		e.Type = ErrorTypeUnknown
	}
	return e
}
