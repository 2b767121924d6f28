package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// EnvDaemonMode はバックグラウンドで再起動された子プロセスに付与される環境変数
const EnvDaemonMode = "KOBITO_DAEMON_MODE"

// ErrAlreadyRunning はPIDファイルが生存中のプロセスを指している場合に返される
var ErrAlreadyRunning = errors.New("kobito is already running")

// Manager はバックグラウンドプロセスを管理するインターフェース
type Manager interface {
	Start(args []string, logFile string) (int, error)
	Stop(pidFile string) error
	Status(pidFile string) (*ProcessStatus, error)
	IsRunning(pidFile string) bool
}

// ProcessStatus はプロセスの状態
type ProcessStatus struct {
	PID       int
	StartTime time.Time
	RepoPath  string
	Running   bool
}

// ProcessInfo はPIDファイルに保存する情報
type ProcessInfo struct {
	PID       int
	StartTime time.Time
	RepoPath  string
}

// IsDaemonMode は現在のプロセスがデーモンとして起動されたかどうかを返す
func IsDaemonMode() bool {
	return os.Getenv(EnvDaemonMode) == "1"
}

// WritePIDFile はPIDファイルを作成する
func WritePIDFile(pidFile string, info *ProcessInfo) error {
	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	content := fmt.Sprintf("%d\n%s\n%s",
		info.PID,
		info.StartTime.Format(time.RFC3339),
		info.RepoPath)

	if err := os.WriteFile(pidFile, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// ReadPIDFile はPIDファイルを読み込む
func ReadPIDFile(pidFile string) (*ProcessInfo, error) {
	content, err := os.ReadFile(pidFile)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) < 3 {
		return nil, fmt.Errorf("invalid PID file format")
	}

	pid, err := strconv.Atoi(lines[0])
	if err != nil {
		return nil, fmt.Errorf("invalid PID: %w", err)
	}

	startTime, err := time.Parse(time.RFC3339, lines[1])
	if err != nil {
		return nil, fmt.Errorf("invalid start time: %w", err)
	}

	return &ProcessInfo{
		PID:       pid,
		StartTime: startTime,
		RepoPath:  lines[2],
	}, nil
}

// RemovePIDFile はPIDファイルを削除する。存在しない場合はエラーにしない
func RemovePIDFile(pidFile string) error {
	if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// EnsureNotRunning はPIDファイルが生存中のプロセスを指していればErrAlreadyRunningを返す
// 古いPIDファイルは削除する
func EnsureNotRunning(m Manager, pidFile string) error {
	status, err := m.Status(pidFile)
	if err != nil {
		// 壊れたPIDファイルは起動の妨げにしない
		return RemovePIDFile(pidFile)
	}
	if status.Running {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, status.PID)
	}
	return nil
}
