package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/douhashi/kobito/internal/claude"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// TrackerGitHub はGitHub Issuesを監視する
	TrackerGitHub = "github"
	// TrackerJira はJIRAチケットを監視する
	TrackerJira = "jira"
)

// Config はアプリケーション全体の設定
type Config struct {
	Tracker  string         `mapstructure:"tracker" yaml:"tracker"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
	GitHub   GitHubConfig   `mapstructure:"github" yaml:"github"`
	Jira     JiraConfig     `mapstructure:"jira" yaml:"jira"`
	Claude   claude.Config  `mapstructure:"claude" yaml:"claude"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// WatchConfig はトラッカーの種類に依らないIssue監視の設定
type WatchConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
}

// GitHubConfig はGitHub関連の設定
type GitHubConfig struct {
	Token          string `mapstructure:"token" yaml:"token"`
	Owner          string `mapstructure:"owner" yaml:"owner"`
	Repo           string `mapstructure:"repo" yaml:"repo"`
	Assignee       string `mapstructure:"assignee" yaml:"assignee"`
	ProcessedLabel string `mapstructure:"processed_label" yaml:"processed_label"`
	// APIURL はGitHub EnterpriseのAPIのURL。空の場合はgithub.com
	APIURL string `mapstructure:"api_url" yaml:"api_url,omitempty"`
}

// JiraConfig はJIRA関連の設定
type JiraConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	Username       string `mapstructure:"username" yaml:"username"`
	Token          string `mapstructure:"token" yaml:"token"`
	JQL            string `mapstructure:"jql" yaml:"jql"`
	ProcessedLabel string `mapstructure:"processed_label" yaml:"processed_label"`
}

// PipelineConfig はIssue処理パイプラインの設定
type PipelineConfig struct {
	BaseBranch      string        `mapstructure:"base_branch" yaml:"base_branch"`
	ProcessInterval time.Duration `mapstructure:"process_interval" yaml:"process_interval"`
	StateDir        string        `mapstructure:"state_dir" yaml:"state_dir"`
	BranchPrefix    string        `mapstructure:"branch_prefix" yaml:"branch_prefix"`
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// NewConfig はデフォルト値で新しいConfigを作成する
func NewConfig() *Config {
	return &Config{
		Tracker: TrackerGitHub,
		Watch: WatchConfig{
			PollInterval:   30 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
		},
		GitHub: GitHubConfig{
			ProcessedLabel: "kobito:processed",
		},
		Jira: JiraConfig{
			JQL:            "assignee = currentUser() AND statusCategory != Done",
			ProcessedLabel: "kobito-processed",
		},
		Claude: claude.NewDefaultConfig(),
		Pipeline: PipelineConfig{
			ProcessInterval: 10 * time.Second,
			BranchPrefix:    "issue",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// flagKeys はコマンドラインフラグと設定キーの対応
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"base-branch": "pipeline.base_branch",
	"tracker":     "tracker",
}

// LoadOption は設定読み込みのオプション
type LoadOption func(v *viper.Viper) error

// WithFlags はフラグの値を設定ファイルより優先させる
func WithFlags(fs *pflag.FlagSet) LoadOption {
	return func(v *viper.Viper) error {
		if fs == nil {
			return nil
		}
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
		return nil
	}
}

// Load は設定ファイルから設定を読み込む
// 環境変数はKOBITO_プレフィックスで上書きできる
func (c *Config) Load(configPath string, opts ...LoadOption) error {
	if configPath == "" {
		return errors.New("config path is required")
	}
	return c.load(configPath, opts...)
}

// LoadOrDefault は設定ファイルを探して読み込み、実際に読み込んだパスを返す
// 見つからない・読めない場合はデフォルト値と環境変数だけを使い、空文字列を返す
func (c *Config) LoadOrDefault(configPath string, opts ...LoadOption) string {
	candidates := SearchPaths()
	if configPath != "" {
		candidates = []string{configPath}
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := c.load(path, opts...); err == nil {
			return path
		}
	}

	_ = c.load("", opts...)
	return ""
}

func (c *Config) load(configPath string, opts ...LoadOption) error {
	v := viper.New()

	v.SetEnvPrefix("KOBITO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 各サービスの標準的な環境変数もサポート
	_ = v.BindEnv("github.token", "KOBITO_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("jira.token", "KOBITO_JIRA_TOKEN", "JIRA_TOKEN")
	_ = v.BindEnv("jira.url", "KOBITO_JIRA_URL", "JIRA_URL")
	_ = v.BindEnv("jira.username", "KOBITO_JIRA_USERNAME", "JIRA_USERNAME")

	setDefaults(v, NewConfig())

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return err
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("tracker", d.Tracker)
	v.SetDefault("watch.poll_interval", d.Watch.PollInterval)
	v.SetDefault("watch.max_retries", d.Watch.MaxRetries)
	v.SetDefault("watch.retry_base_delay", d.Watch.RetryBaseDelay)
	v.SetDefault("github.token", d.GitHub.Token)
	v.SetDefault("github.owner", d.GitHub.Owner)
	v.SetDefault("github.repo", d.GitHub.Repo)
	v.SetDefault("github.assignee", d.GitHub.Assignee)
	v.SetDefault("github.api_url", d.GitHub.APIURL)
	v.SetDefault("github.processed_label", d.GitHub.ProcessedLabel)
	v.SetDefault("jira.url", d.Jira.URL)
	v.SetDefault("jira.username", d.Jira.Username)
	v.SetDefault("jira.token", d.Jira.Token)
	v.SetDefault("jira.jql", d.Jira.JQL)
	v.SetDefault("jira.processed_label", d.Jira.ProcessedLabel)
	v.SetDefault("claude.command", d.Claude.Command)
	v.SetDefault("claude.args", d.Claude.Args)
	v.SetDefault("claude.timeout", d.Claude.Timeout)
	v.SetDefault("claude.rate_limit_patterns", d.Claude.RateLimitPatterns)
	v.SetDefault("claude.prompts.implementation", d.Claude.Prompts.Implementation)
	v.SetDefault("claude.prompts.commit_push", d.Claude.Prompts.CommitPush)
	v.SetDefault("claude.prompts.pull_request", d.Claude.Prompts.PullRequest)
	v.SetDefault("pipeline.base_branch", d.Pipeline.BaseBranch)
	v.SetDefault("pipeline.process_interval", d.Pipeline.ProcessInterval)
	v.SetDefault("pipeline.state_dir", d.Pipeline.StateDir)
	v.SetDefault("pipeline.branch_prefix", d.Pipeline.BranchPrefix)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	switch c.Tracker {
	case TrackerGitHub:
		if c.GitHub.Token == "" {
			return errors.New("GitHub token is required (set github.token or GITHUB_TOKEN)")
		}
	case TrackerJira:
		if c.Jira.URL == "" {
			return errors.New("JIRA URL is required")
		}
		if c.Jira.Username == "" {
			return errors.New("JIRA username is required")
		}
		if c.Jira.Token == "" {
			return errors.New("JIRA token is required (set jira.token or JIRA_TOKEN)")
		}
	default:
		return fmt.Errorf("unknown tracker: %q (must be %s or %s)", c.Tracker, TrackerGitHub, TrackerJira)
	}

	if c.Watch.PollInterval < time.Second {
		return errors.New("poll interval must be at least 1 second")
	}
	if c.Watch.MaxRetries < 1 {
		return errors.New("watch max retries must be at least 1")
	}
	if c.Pipeline.ProcessInterval < time.Second {
		return errors.New("process interval must be at least 1 second")
	}
	if c.Claude.Timeout <= 0 {
		return errors.New("claude timeout must be positive")
	}
	if c.Claude.Command == "" {
		return errors.New("claude command is required")
	}

	return nil
}

// ConfigDir は設定ディレクトリを返す
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "kobito")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "kobito")
	}
	return filepath.Join(home, ".config", "kobito")
}

// DefaultConfigPath はkobito initが書き出す設定ファイルのパスを返す
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "kobito.yml")
}

// SearchPaths は設定ファイルを探す順序を返す
func SearchPaths() []string {
	return []string{
		".kobito.yml",
		".kobito.yaml",
		DefaultConfigPath(),
		filepath.Join(ConfigDir(), "kobito.yaml"),
	}
}

// WriteDefault はデフォルト設定をYAMLで書き出す。既存ファイルは上書きしない
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	data, err := yaml.Marshal(NewConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// トークンを書き込む可能性があるため所有者のみ読み書き可能にする
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
