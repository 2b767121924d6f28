package claude

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/douhashi/kobito/internal/pipeline"
)

// RateLimitError はclaudeコマンドが利用制限に達したことを表す
type RateLimitError struct {
	Output string
	// RetryAfter は出力から読み取れた再試行までの時間。不明な場合は0
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("claude rate limited (retry after %s): %s", e.RetryAfter, e.Output)
	}
	return fmt.Sprintf("claude rate limited: %s", e.Output)
}

// RateLimited は常にtrueを返す
func (e *RateLimitError) RateLimited() bool { return true }

// Is はpipeline.ErrRateLimitedとの比較でtrueを返す
func (e *RateLimitError) Is(target error) bool {
	return target == pipeline.ErrRateLimited
}

// ExecError はclaudeコマンドの実行エラーを表す
type ExecError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("command '%s' failed with exit code %d: %v", e.Command, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("command '%s' failed with exit code %d: %s", e.Command, e.ExitCode, e.Stderr)
}

func (e *ExecError) Unwrap() error { return e.Err }

var (
	// usageLimitLineRegex はclaude CLIが利用制限時に出す1行。数値はリセット時刻のUNIX秒
	usageLimitLineRegex = regexp.MustCompile(`(?m)^\s*Claude AI usage limit reached\|(\d{9,11})\s*$`)
	tryAgainRegex = regexp.MustCompile(`(?i)(?:try again|retry) (?:in|after) (\d+)\s*(second|sec|s|minute|min|m|hour|hr|h)s?\b`)
	resetsAtRegex = regexp.MustCompile(`(?i)resets? at (\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
)

// parseUsageLimitLine はCLIの定型の利用制限メッセージを探し、リセットまでの時間を返す
func parseUsageLimitLine(output string, now time.Time) (time.Duration, bool) {
	m := usageLimitLineRegex.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	epoch, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, true
	}
	if d := time.Unix(epoch, 0).Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}

// parseRetryAfter はclaudeの出力から再試行までの時間を読み取る
func parseRetryAfter(output string, now time.Time) time.Duration {
	if m := tryAgainRegex.FindStringSubmatch(output); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0
		}
		switch unit := strings.ToLower(m[2]); {
		case strings.HasPrefix(unit, "h"):
			return time.Duration(n) * time.Hour
		case strings.HasPrefix(unit, "m"):
			return time.Duration(n) * time.Minute
		default:
			return time.Duration(n) * time.Second
		}
	}

	if m := resetsAtRegex.FindStringSubmatch(output); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		switch strings.ToLower(m[3]) {
		case "pm":
			if hour < 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		}
		if hour > 23 || minute > 59 {
			return 0
		}

		reset := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !reset.After(now) {
			reset = reset.Add(24 * time.Hour)
		}
		return reset.Sub(now)
	}

	return 0
}
