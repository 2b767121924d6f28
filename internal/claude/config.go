package claude

import "time"

// PromptTemplates は各ステップでエージェントに渡すプロンプトのテンプレート
type PromptTemplates struct {
	Implementation string `mapstructure:"implementation" yaml:"implementation"`
	CommitPush     string `mapstructure:"commit_push" yaml:"commit_push"`
	PullRequest    string `mapstructure:"pull_request" yaml:"pull_request"`
}

// Config はClaude実行の設定
type Config struct {
	Command           string          `mapstructure:"command" yaml:"command"`
	Args              []string        `mapstructure:"args" yaml:"args"`
	Timeout           time.Duration   `mapstructure:"timeout" yaml:"timeout"`
	RateLimitPatterns []string        `mapstructure:"rate_limit_patterns" yaml:"rate_limit_patterns"`
	Prompts           PromptTemplates `mapstructure:"prompts" yaml:"prompts"`
}

// NewDefaultConfig はデフォルトのClaude設定を生成する
func NewDefaultConfig() Config {
	return Config{
		Command: "claude",
		Args:    []string{"--dangerously-skip-permissions", "-p"},
		Timeout: 30 * time.Minute,
		RateLimitPatterns: []string{
			"usage limit reached",
			"rate_limit_error",
			"overloaded_error",
			"too many requests",
		},
		Prompts: DefaultPromptTemplates(),
	}
}

// DefaultPromptTemplates はデフォルトのプロンプトテンプレートを返す
func DefaultPromptTemplates() PromptTemplates {
	return PromptTemplates{
		Implementation: "You are working on branch {{branch}}. Implement the following issue in this repository. " +
			"Do not commit.\n\nIssue {{issue-number}}: {{issue-title}}\n{{issue-url}}\n\n{{issue-body}}",
		CommitPush: "Commit all changes on branch {{branch}} with a descriptive message that references " +
			"issue {{issue-number}} ({{issue-title}}), then push the branch to origin.",
		PullRequest: "Create a pull request from {{branch}} into {{base-branch}} for issue {{issue-number}} " +
			"({{issue-title}}). Summarize the change and link {{issue-url}}.",
	}
}
