package claude

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shellExecutor はプロンプトを$0として受け取るシェルスクリプトを実行するExecutorを返す
func shellExecutor(t *testing.T, script string, timeout time.Duration) *Executor {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}
	cfg := NewDefaultConfig()
	cfg.Command = "sh"
	cfg.Args = []string{"-c", script}
	cfg.Timeout = timeout
	return NewExecutor(cfg, t.TempDir(), logger.NewNop())
}

func TestExecutor_Execute(t *testing.T) {
	t.Run("正常系: プロンプトを最後の引数として渡す", func(t *testing.T) {
		e := shellExecutor(t, `test "$0" = "implement issue #1" || exit 3`, time.Minute)
		assert.NoError(t, e.Execute(context.Background(), "implement issue #1"))
	})

	t.Run("異常系: 非ゼロ終了はExecErrorになる", func(t *testing.T) {
		e := shellExecutor(t, `echo "compile error" >&2; exit 2`, time.Minute)
		err := e.Execute(context.Background(), "prompt")

		var execErr *ExecError
		require.True(t, errors.As(err, &execErr))
		assert.Equal(t, 2, execErr.ExitCode)
		assert.Equal(t, "compile error", execErr.Stderr)
		assert.False(t, pipeline.IsRateLimited(err))
	})

	t.Run("異常系: 利用制限の出力はRateLimitErrorになる", func(t *testing.T) {
		e := shellExecutor(t, `echo "Claude usage limit reached. Try again in 15 minutes." >&2; exit 1`, time.Minute)
		err := e.Execute(context.Background(), "prompt")

		var rlErr *RateLimitError
		require.True(t, errors.As(err, &rlErr))
		assert.Equal(t, 15*time.Minute, rlErr.RetryAfter)
		assert.True(t, errors.Is(err, pipeline.ErrRateLimited))
		assert.True(t, pipeline.IsRateLimited(err))
	})

	t.Run("異常系: 標準エラーのAPIエラー種別はRateLimitError", func(t *testing.T) {
		e := shellExecutor(t, `echo 'API Error: 429 {"type":"error","error":{"type":"rate_limit_error"}}' >&2; exit 1`, time.Minute)
		err := e.Execute(context.Background(), "prompt")
		assert.True(t, pipeline.IsRateLimited(err))
	})

	t.Run("異常系: 正常終了でもCLIの利用制限メッセージならRateLimitError", func(t *testing.T) {
		e := shellExecutor(t, `echo "Claude AI usage limit reached|1760781600"; exit 0`, time.Minute)
		e.now = func() time.Time { return time.Unix(1760778000, 0) }

		err := e.Execute(context.Background(), "prompt")

		var rlErr *RateLimitError
		require.True(t, errors.As(err, &rlErr))
		assert.Equal(t, time.Hour, rlErr.RetryAfter)
	})

	t.Run("異常系: タイムアウト", func(t *testing.T) {
		e := shellExecutor(t, `exec sleep 5`, 100*time.Millisecond)
		err := e.Execute(context.Background(), "prompt")

		var execErr *ExecError
		require.True(t, errors.As(err, &execErr))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, pipeline.IsRateLimited(err))
	})

	t.Run("異常系: 呼び出し元のキャンセル", func(t *testing.T) {
		e := shellExecutor(t, `exec sleep 5`, time.Minute)
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()

		err := e.Execute(ctx, "prompt")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExecutor_ExecuteNotRateLimited(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{name: "正常系: 正常終了の要約にIssue番号429が含まれる", script: `echo "Done. I implemented issue 429 and all tests pass."; exit 0`},
		{name: "正常系: 正常終了の要約にrate limitが含まれる", script: `echo "Added a rate limit middleware and usage limit reached handling."; exit 0`},
		{name: "正常系: 正常終了で標準エラーに利用制限の語がある", script: `echo "warning: too many requests earlier, retried" >&2; exit 0`},
		{name: "異常系: 失敗でも標準出力だけの一致は見ない", script: `echo "fixing issue 429: usage limit reached"; exit 1`},
		{name: "異常系: 単語の一部は一致しない", script: `echo "undefined: rate_limit_errors_total" >&2; exit 1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := shellExecutor(t, tt.script, time.Minute)
			err := e.Execute(context.Background(), "prompt")
			assert.False(t, pipeline.IsRateLimited(err))

			var rlErr *RateLimitError
			assert.False(t, errors.As(err, &rlErr))
		})
	}

	t.Run("正常系: 正常終了はnil", func(t *testing.T) {
		e := shellExecutor(t, `echo "Done. I implemented issue 429 and all tests pass."; exit 0`, time.Minute)
		assert.NoError(t, e.Execute(context.Background(), "prompt"))
	})
}

func TestCompilePatterns(t *testing.T) {
	patterns := compilePatterns([]string{"usage limit reached", "", "  ", "HTTP 429 (too many)"})
	require.Len(t, patterns, 2)

	assert.True(t, patterns[0].MatchString("Claude USAGE LIMIT REACHED."))
	assert.False(t, patterns[0].MatchString("usage limit reachedness"))
	assert.True(t, patterns[1].MatchString("got HTTP 429 (too many) from api"))
}

func TestParseUsageLimitLine(t *testing.T) {
	now := time.Unix(1760778000, 0)

	tests := []struct {
		name   string
		output string
		want   time.Duration
		wantOK bool
	}{
		{name: "正常系: リセット時刻まで", output: "Claude AI usage limit reached|1760781600\n", want: time.Hour, wantOK: true},
		{name: "正常系: 過ぎたリセット時刻は0", output: "Claude AI usage limit reached|1760770000", want: 0, wantOK: true},
		{name: "異常系: 時刻のない文", output: "Claude AI usage limit reached", wantOK: false},
		{name: "異常系: 行の途中", output: "echo Claude AI usage limit reached|1760781600", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseUsageLimitLine(tt.output, now)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecutor_CheckExists(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Command = "kobito-nonexistent-command"
	e := NewExecutor(cfg, ".", nil)
	assert.ErrorContains(t, e.CheckExists(), "kobito-nonexistent-command command not found")
}

func TestExecutor_BuildCommand(t *testing.T) {
	cfg := NewDefaultConfig()
	e := NewExecutor(cfg, "/repo", nil)

	cmd := e.BuildCommand(context.Background(), "do it")

	assert.Equal(t, []string{"claude", "--dangerously-skip-permissions", "-p", "do it"}, cmd.Args)
	assert.Equal(t, "/repo", cmd.Dir)
	assert.Equal(t, []string{"--dangerously-skip-permissions", "-p"}, cfg.Args)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		output string
		want   time.Duration
	}{
		{name: "分", output: "Please try again in 30 minutes", want: 30 * time.Minute},
		{name: "秒", output: "retry after 45s", want: 45 * time.Second},
		{name: "時間", output: "try again in 2 hours", want: 2 * time.Hour},
		{name: "午後の時刻", output: "Your limit resets at 3pm", want: 6 * time.Hour},
		{name: "分付きの時刻", output: "limit resets at 10:30", want: 90 * time.Minute},
		{name: "過ぎた時刻は翌日", output: "resets at 8am", want: 23 * time.Hour},
		{name: "情報なし", output: "usage limit reached", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.output, now))
		})
	}
}
