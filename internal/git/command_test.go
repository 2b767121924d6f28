package git

import (
	"context"
	"strings"
	"testing"

	"github.com/douhashi/kobito/internal/testutil/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestCommand_Run(t *testing.T) {
	helpers.RequireGit(t)

	tests := []struct {
		name        string
		args        []string
		workDir     string
		expectError bool
		expectLog   string
	}{
		{
			name:      "正常系: git versionコマンドの実行",
			args:      []string{"version"},
			expectLog: "Git command completed successfully",
		},
		{
			name:        "異常系: 存在しないgitサブコマンド",
			args:        []string{"nonexistent-command"},
			expectError: true,
			expectLog:   "Git command failed",
		},
		{
			name:        "異常系: 存在しないディレクトリでの実行",
			args:        []string{"status"},
			workDir:     "/nonexistent/directory",
			expectError: true,
			expectLog:   "Git command failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, recorded := helpers.NewObservedLogger(zapcore.DebugLevel)
			cmd := NewCommand(log)

			out, err := cmd.Git(context.Background(), tt.workDir, tt.args...)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.True(t, strings.HasPrefix(out, "git version"))
			}

			assert.Equal(t, 1, recorded.FilterMessage("Executing git command").Len())
			assert.Equal(t, 1, recorded.FilterMessage(tt.expectLog).Len())
		})
	}
}

func TestTruncateOutput(t *testing.T) {
	assert.Equal(t, "short", truncateOutput("short", 10))
	assert.Equal(t, "0123456789... (truncated)", truncateOutput("0123456789abcdef", 10))

	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "line"
	}
	got := truncateOutput(strings.Join(lines, "\n"), 10)
	assert.Contains(t, got, "(10 lines omitted)")
}
