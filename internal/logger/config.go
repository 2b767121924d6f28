package logger

import (
	"os"
	"strings"
)

// ConfigFromEnv は環境変数から設定を読み込む
// 優先順位: LOG_LEVEL > DEBUG > 引数のデフォルト
func ConfigFromEnv(defaults Config) *Config {
	config := &Config{
		Level:  "info",
		Format: "text",
		Output: defaults.Output,
	}
	if defaults.Level != "" {
		config.Level = strings.ToLower(defaults.Level)
	}
	if defaults.Format != "" {
		config.Format = strings.ToLower(defaults.Format)
	}

	if isTrue(os.Getenv("DEBUG")) {
		config.Level = "debug"
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Level = strings.ToLower(level)
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Format = strings.ToLower(format)
	}

	return config
}

// NewFromEnv は環境変数から設定を読み込んでロガーを作成する
func NewFromEnv(defaults Config) (Logger, error) {
	config := ConfigFromEnv(defaults)
	return New(
		WithLevel(config.Level),
		WithFormat(config.Format),
		WithOutput(config.Output),
	)
}

// isTrue は文字列がtrueを表すかチェックする
func isTrue(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
