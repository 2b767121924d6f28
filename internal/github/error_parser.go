package github

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// Regular expressions for classifying transport level error messages
	rateLimitRegex   = regexp.MustCompile(`(?i)(rate limit|API rate limit exceeded|You have exceeded a secondary rate limit)`)
	authRegex        = regexp.MustCompile(`(?i)(unauthorized|bad credentials|requires authentication)`)
	networkRegex     = regexp.MustCompile(`(?i)(timeout|connection refused|connection reset|no such host|dial tcp)`)
	serverErrorRegex = regexp.MustCompile(`(?i)(internal server error|bad gateway|service unavailable|\b50[234]\b)`)
	retryAfterRegex  = regexp.MustCompile(`(?i)retry.?after:?\s*(\d+)`)
)

// ParseErrorMessage classifies an error that carried no HTTP response
func ParseErrorMessage(message string, err error) *GitHubError {
	ghErr := &GitHubError{
		Type:        ErrorTypeUnknown,
		Message:     strings.TrimSpace(message),
		OriginalErr: err,
	}

	switch {
	case rateLimitRegex.MatchString(message):
		ghErr.Type = ErrorTypeRateLimit
		ghErr.StatusCode = 429
		if matches := retryAfterRegex.FindStringSubmatch(message); len(matches) > 1 {
			if seconds, err := strconv.Atoi(matches[1]); err == nil {
				ghErr.RetryAfter = time.Duration(seconds) * time.Second
			}
		}

	case authRegex.MatchString(message):
		ghErr.Type = ErrorTypeAuthentication
		ghErr.StatusCode = 401

	case networkRegex.MatchString(message):
		ghErr.Type = ErrorTypeNetworkTimeout

	case serverErrorRegex.MatchString(message):
		ghErr.Type = ErrorTypeServerError
		ghErr.StatusCode = 500
	}

	return ghErr
}
