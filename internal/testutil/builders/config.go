package builders

import (
	"time"

	"github.com/douhashi/kobito/internal/config"
)

// ConfigBuilder builds config.Config instances for testing
type ConfigBuilder struct {
	cfg *config.Config
}

// NewConfigBuilder はテストで使えるGitHub向け設定を作る
// 待ち時間は短く、リポジトリとベースブランチは解決済み
func NewConfigBuilder() *ConfigBuilder {
	cfg := config.NewConfig()
	cfg.GitHub.Token = "test-token"
	cfg.GitHub.Owner = "o"
	cfg.GitHub.Repo = "r"
	cfg.Watch.PollInterval = time.Second
	cfg.Watch.MaxRetries = 1
	cfg.Watch.RetryBaseDelay = time.Millisecond
	cfg.Pipeline.BaseBranch = "main"
	cfg.Pipeline.ProcessInterval = time.Second
	return &ConfigBuilder{cfg: cfg}
}

// WithStateDir sets the directory for persisted processing states
func (b *ConfigBuilder) WithStateDir(dir string) *ConfigBuilder {
	b.cfg.Pipeline.StateDir = dir
	return b
}

// WithBaseBranch sets the base branch
func (b *ConfigBuilder) WithBaseBranch(branch string) *ConfigBuilder {
	b.cfg.Pipeline.BaseBranch = branch
	return b
}

// WithJira はJIRAをトラッカーにする
func (b *ConfigBuilder) WithJira(url, username, token string) *ConfigBuilder {
	b.cfg.Tracker = config.TrackerJira
	b.cfg.Jira.URL = url
	b.cfg.Jira.Username = username
	b.cfg.Jira.Token = token
	return b
}

// Build returns the built config
func (b *ConfigBuilder) Build() *config.Config {
	return b.cfg
}
