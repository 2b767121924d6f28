//go:build !windows

package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

type manager struct {
	stopTimeout  time.Duration
	pollInterval time.Duration
}

// NewManager は新しいManagerを作成する
func NewManager() Manager {
	return &manager{
		stopTimeout:  10 * time.Second,
		pollInterval: 100 * time.Millisecond,
	}
}

// Start は自分自身をデーモンモードでバックグラウンド起動し、子プロセスのPIDを返す
func (m *manager) Start(args []string, logFile string) (int, error) {
	if IsDaemonMode() {
		return os.Getpid(), nil
	}

	cmd := exec.Command(os.Args[0], args...)
	cmd.Env = append(os.Environ(), EnvDaemonMode+"=1")
	cmd.Stdin = nil

	// ロガー初期化前のpanic等を拾うため標準出力はログファイルへ
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return 0, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return 0, fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		cmd.Stdout = f
		cmd.Stderr = f
	}

	// プロセスグループを分離
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release daemon process: %w", err)
	}
	return pid, nil
}

// Stop はSIGTERMを送り、終了しなければSIGKILLする
func (m *manager) Stop(pidFile string) error {
	info, err := ReadPIDFile(pidFile)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	if !info.isRunning() {
		return RemovePIDFile(pidFile)
	}

	proc, err := os.FindProcess(info.PID)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	deadline := time.Now().Add(m.stopTimeout)
	for time.Now().Before(deadline) {
		if !info.isRunning() {
			return RemovePIDFile(pidFile)
		}
		time.Sleep(m.pollInterval)
	}

	if err := proc.Signal(syscall.SIGKILL); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to send SIGKILL: %w", err)
	}
	return RemovePIDFile(pidFile)
}

// Status はプロセスの状態を取得する
func (m *manager) Status(pidFile string) (*ProcessStatus, error) {
	info, err := ReadPIDFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return &ProcessStatus{Running: false}, nil
		}
		return nil, err
	}

	status := &ProcessStatus{
		PID:       info.PID,
		StartTime: info.StartTime,
		RepoPath:  info.RepoPath,
		Running:   info.isRunning(),
	}

	if !status.Running {
		_ = RemovePIDFile(pidFile)
	}
	return status, nil
}

// IsRunning はPIDファイルのプロセスが実行中かどうかを返す
func (m *manager) IsRunning(pidFile string) bool {
	info, err := ReadPIDFile(pidFile)
	if err != nil {
		return false
	}
	return info.isRunning()
}

func (info *ProcessInfo) isRunning() bool {
	if info.PID <= 0 {
		return false
	}

	proc, err := os.FindProcess(info.PID)
	if err != nil {
		return false
	}

	// シグナル0で存在確認。他ユーザーのプロセスはEPERMになるが生存はしている
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
