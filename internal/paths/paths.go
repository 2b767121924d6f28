package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// PathManager はkobitoのファイルパスを管理するインターフェース
type PathManager interface {
	DataDir() string
	RunDir() string
	LogFile(repoIdentifier string) string
	PIDFile(repoIdentifier string) string
	StateDir(repoIdentifier string) string
	EnsureDirectories() error
}

type pathManager struct {
	baseDir string
}

// NewPathManager は新しいPathManagerを作成します
// baseDirが空の場合は $XDG_DATA_HOME/kobito（未設定なら ~/.local/share/kobito）を使用します
func NewPathManager(baseDir string) PathManager {
	if baseDir == "" {
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			dataHome = filepath.Join(os.Getenv("HOME"), ".local", "share")
		}
		baseDir = filepath.Join(dataHome, "kobito")
	}
	return &pathManager{
		baseDir: baseDir,
	}
}

// DataDir はデータディレクトリのパスを返します
func (p *pathManager) DataDir() string {
	return p.baseDir
}

// RunDir はPIDファイルを格納するディレクトリのパスを返します
func (p *pathManager) RunDir() string {
	return filepath.Join(p.baseDir, "run")
}

// LogFile は指定されたリポジトリのデーモンログファイルのパスを返します
func (p *pathManager) LogFile(repoIdentifier string) string {
	return filepath.Join(p.baseDir, "logs", SanitizeIdentifier(repoIdentifier)+".log")
}

// PIDFile は指定されたリポジトリのPIDファイルのパスを返します
func (p *pathManager) PIDFile(repoIdentifier string) string {
	return filepath.Join(p.RunDir(), SanitizeIdentifier(repoIdentifier)+".pid")
}

// StateDir は指定されたリポジトリの処理状態ファイルを格納するディレクトリを返します
// 作業ツリーの外に置くことで、変更検出に状態ファイルが混ざらないようにしています
func (p *pathManager) StateDir(repoIdentifier string) string {
	return filepath.Join(p.baseDir, "state", SanitizeIdentifier(repoIdentifier))
}

// EnsureDirectories は必要なディレクトリを作成します
func (p *pathManager) EnsureDirectories() error {
	dirs := []string{
		p.RunDir(),
		filepath.Join(p.baseDir, "logs"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// SanitizeIdentifier はファイルシステムで安全な識別子に変換します
func SanitizeIdentifier(identifier string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		".", "_",
		" ", "_",
	)
	return replacer.Replace(identifier)
}
