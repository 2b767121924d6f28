package logger

import (
	"regexp"
	"strings"
)

const masked = "***MASKED***"

// センシティブなキーのパターン（大文字小文字を区別しない）
var sensitiveKeyPatterns = []string{
	"password",
	"token",
	"api_key",
	"apikey",
	"secret",
	"github_token",
	"jira_token",
	"anthropic_api_key",
	"authorization",
	"credential",
	"private_key",
	"access_token",
}

// センシティブな値のパターンと、マスク時に残すプレフィックス
var sensitiveValuePatterns = []struct {
	re     *regexp.Regexp
	prefix string
}{
	{regexp.MustCompile(`^ghp_[A-Za-z0-9]{36,}$`), "ghp_"},
	{regexp.MustCompile(`^ghs_[A-Za-z0-9]{36,}$`), "ghs_"},
	{regexp.MustCompile(`^ghu_[A-Za-z0-9]{36,}$`), "ghu_"},
	{regexp.MustCompile(`^github_pat_[A-Za-z0-9_]{40,}$`), "github_pat_"},
	{regexp.MustCompile(`^sk-ant-[a-z0-9]+-[A-Za-z0-9\-_]{20,}$`), "sk-ant-"},
	{regexp.MustCompile(`^ATATT[A-Za-z0-9\-_=]{20,}$`), "ATATT"},
	{regexp.MustCompile(`(?i)^Bearer\s+[A-Za-z0-9\-_\.]{20,}$`), "Bearer "},
}

// SanitizeKeyValue はキーと値の組み合わせをチェックし、センシティブな情報をマスクする
func SanitizeKeyValue(key string, value interface{}) (string, interface{}) {
	if isSensitiveKey(key) {
		if s, ok := value.(string); ok && s == "" {
			return key, value
		}
		return key, maskValue(value)
	}
	if isSensitiveValue(value) {
		return key, maskValue(value)
	}
	return key, value
}

// SanitizeArgs はログ引数（key-valueペア）をサニタイズする
func SanitizeArgs(args ...interface{}) []interface{} {
	if len(args) < 2 {
		return args
	}

	sanitized := make([]interface{}, len(args))
	copy(sanitized, args)

	for i := 0; i < len(sanitized)-1; i += 2 {
		if key, ok := sanitized[i].(string); ok {
			_, sanitized[i+1] = SanitizeKeyValue(key, sanitized[i+1])
		}
	}

	return sanitized
}

// isSensitiveKey はキーがセンシティブかどうかを判定する
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)

	for _, pattern := range sensitiveKeyPatterns {
		if lowerKey == pattern ||
			strings.HasPrefix(lowerKey, pattern+"_") ||
			strings.HasSuffix(lowerKey, "_"+pattern) ||
			strings.Contains(lowerKey, "_"+pattern+"_") {
			return true
		}
	}

	return false
}

// isSensitiveValue は値がセンシティブかどうかを判定する
func isSensitiveValue(value interface{}) bool {
	str, ok := value.(string)
	if !ok || str == "" {
		return false
	}

	for _, p := range sensitiveValuePatterns {
		if p.re.MatchString(str) {
			return true
		}
	}

	return false
}

// maskValue はセンシティブな値をマスクする（既知のプレフィックスは保持）
func maskValue(value interface{}) string {
	str, ok := value.(string)
	if !ok {
		return masked
	}

	for _, p := range sensitiveValuePatterns {
		if p.re.MatchString(str) {
			return p.prefix + masked
		}
	}

	return masked
}
