//go:build windows

package daemon

import (
	"fmt"
)

type manager struct{}

// NewManager は新しいManagerを作成する
func NewManager() Manager {
	return &manager{}
}

// Start はWindowsでは未対応
func (m *manager) Start(args []string, logFile string) (int, error) {
	return 0, fmt.Errorf("バックグラウンド実行はWindows環境では未対応です。--foreground フラグを使用してください")
}

// Stop はWindowsでは未対応
func (m *manager) Stop(pidFile string) error {
	return fmt.Errorf("プロセス停止機能はWindows環境では未対応です")
}

// Status はWindowsでは常に停止中を返す
func (m *manager) Status(pidFile string) (*ProcessStatus, error) {
	return &ProcessStatus{Running: false}, nil
}

// IsRunning はWindowsでは常にfalse
func (m *manager) IsRunning(pidFile string) bool {
	return false
}
