package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/douhashi/kobito/internal/logger"
)

// Command は外部コマンドの実行を管理する構造体
type Command struct {
	logger logger.Logger
}

// NewCommand は新しいCommandインスタンスを作成する
func NewCommand(log logger.Logger) *Command {
	if log == nil {
		log = logger.NewNop()
	}
	return &Command{
		logger: log,
	}
}

// Git はworkDirでgitサブコマンドを実行する
func (c *Command) Git(ctx context.Context, workDir string, args ...string) (string, error) {
	return c.Run(ctx, "git", args, workDir)
}

// Run は指定されたコマンドを実行し、前後の空白を除いた標準出力を返す
func (c *Command) Run(ctx context.Context, command string, args []string, workDir string) (string, error) {
	logFields := []interface{}{
		"command", command,
		"args", args,
	}
	if workDir != "" {
		logFields = append(logFields, "workDir", workDir)
	}

	c.logger.Debug("Executing git command", logFields...)

	cmd := exec.CommandContext(ctx, command, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	stdoutStr := strings.TrimSpace(stdout.String())
	stderrStr := strings.TrimSpace(stderr.String())

	if err != nil {
		errorFields := append(logFields,
			"error", err.Error(),
			"stderr", truncateOutput(stderrStr, 1000),
		)
		if stdoutStr != "" {
			errorFields = append(errorFields, "stdout", truncateOutput(stdoutStr, 1000))
		}
		c.logger.Debug("Git command failed", errorFields...)

		if stderrStr != "" {
			return "", fmt.Errorf("%s %s failed: %w\nstderr: %s", command, strings.Join(args, " "), err, stderrStr)
		}
		return "", fmt.Errorf("%s %s failed: %w", command, strings.Join(args, " "), err)
	}

	successFields := logFields
	if stdoutStr != "" {
		successFields = append(successFields, "output", truncateOutput(stdoutStr, 500))
	}
	c.logger.Debug("Git command completed successfully", successFields...)

	return stdoutStr, nil
}

// truncateOutput は長い出力を指定された長さに切り詰める
func truncateOutput(output string, maxLength int) string {
	if len(output) <= maxLength {
		return output
	}

	lines := strings.Split(output, "\n")
	if len(lines) > 10 {
		// 最初と最後の5行だけ残す
		result := strings.Join(lines[:5], "\n")
		result += fmt.Sprintf("\n... (%d lines omitted) ...\n", len(lines)-10)
		result += strings.Join(lines[len(lines)-5:], "\n")
		return result
	}

	return output[:maxLength] + "... (truncated)"
}
