package claude

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/douhashi/kobito/internal/logger"
)

const maxOutputInError = 2000

// Executor はclaudeコマンドをリポジトリのルートで実行するエージェント
type Executor struct {
	config   Config
	workDir  string
	logger   logger.Logger
	now      func() time.Time
	patterns []*regexp.Regexp
}

// NewExecutor は新しいExecutorを作成する
func NewExecutor(cfg Config, workDir string, log logger.Logger) *Executor {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Command == "" {
		cfg.Command = "claude"
	}
	return &Executor{
		config:   cfg,
		workDir:  workDir,
		logger:   log.WithFields("component", "claude_executor"),
		now:      time.Now,
		patterns: compilePatterns(cfg.RateLimitPatterns),
	}
}

// compilePatterns は設定されたパターンを大文字小文字を区別しない単語単位の正規表現にする
func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		expr := regexp.QuoteMeta(p)
		if isWordChar(p[0]) {
			expr = `\b` + expr
		}
		if isWordChar(p[len(p)-1]) {
			expr += `\b`
		}
		compiled = append(compiled, regexp.MustCompile("(?i)"+expr))
	}
	return compiled
}

func isWordChar(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// CheckExists はclaudeコマンドが存在するかチェックする
func (e *Executor) CheckExists() error {
	if _, err := exec.LookPath(e.config.Command); err != nil {
		return fmt.Errorf("%s command not found: %w", e.config.Command, err)
	}
	return nil
}

// Execute はプロンプトを渡してclaudeを実行する
// 利用制限と判断した場合は*RateLimitErrorを返す。正常終了は定型メッセージがある場合だけ
func (e *Executor) Execute(ctx context.Context, prompt string) error {
	runCtx := ctx
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	cmd := e.BuildCommand(runCtx, prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := e.now()
	e.logger.Info("Executing claude", "command", e.config.Command, "args", e.config.Args, "workDir", e.workDir)

	err := cmd.Run()
	duration := time.Since(start)

	combined := stdout.String() + "\n" + stderr.String()

	// CLIの定型の利用制限メッセージは終了コードに関わらず利用制限とみなす
	if retryAfter, ok := parseUsageLimitLine(combined, e.now()); ok {
		return e.rateLimited(combined, retryAfter, "usage limit line", duration)
	}

	if err != nil {
		if ctx.Err() != nil {
			e.logger.Info("Claude execution interrupted", "duration", duration)
			return fmt.Errorf("claude execution interrupted: %w", ctx.Err())
		}

		// 設定パターンは失敗した実行の標準エラーだけを見る
		if runCtx.Err() == nil {
			if pattern, ok := e.matchRateLimit(stderr.String()); ok {
				return e.rateLimited(combined, parseRetryAfter(combined, e.now()), pattern, duration)
			}
		}

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", e.config.Timeout, runCtx.Err())
		}

		execErr := &ExecError{
			Command:  e.config.Command,
			ExitCode: exitCode,
			Stderr:   tail(strings.TrimSpace(stderr.String()), maxOutputInError),
			Err:      err,
		}
		e.logger.Error("Claude execution failed", "exitCode", exitCode, "duration", duration, "error", execErr)
		return execErr
	}

	e.logger.Info("Claude execution completed successfully", "duration", duration)
	return nil
}

// BuildCommand はclaude実行用のコマンドを構築する
func (e *Executor) BuildCommand(ctx context.Context, prompt string) *exec.Cmd {
	args := make([]string, 0, len(e.config.Args)+1)
	args = append(args, e.config.Args...)
	args = append(args, prompt)

	cmd := exec.CommandContext(ctx, e.config.Command, args...)
	cmd.Dir = e.workDir
	// 子プロセスが出力を握ったままでも終了を待ち続けない
	cmd.WaitDelay = 10 * time.Second
	return cmd
}

func (e *Executor) rateLimited(output string, retryAfter time.Duration, pattern string, duration time.Duration) error {
	rlErr := &RateLimitError{
		Output:     tail(strings.TrimSpace(output), maxOutputInError),
		RetryAfter: retryAfter,
	}
	e.logger.Warn("Claude rate limit detected", "pattern", pattern, "retryAfter", rlErr.RetryAfter, "duration", duration)
	return rlErr
}

func (e *Executor) matchRateLimit(output string) (string, bool) {
	for _, re := range e.patterns {
		if re.MatchString(output) {
			return re.String(), true
		}
	}
	return "", false
}

// tail は長い出力の末尾だけを残す
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
