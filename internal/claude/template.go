package claude

import (
	"fmt"
	"strings"

	"github.com/douhashi/kobito/internal/types"
)

// TemplateVariables はテンプレート展開で使用する変数
type TemplateVariables struct {
	IssueNumber string
	IssueTitle  string
	IssueBody   string
	IssueURL    string
	Branch      string
	BaseBranch  string
}

// ExpandTemplate はテンプレート文字列内の変数を実際の値に置換する
func ExpandTemplate(template string, vars *TemplateVariables) string {
	return strings.NewReplacer(
		"{{issue-number}}", vars.IssueNumber,
		"{{issue-title}}", vars.IssueTitle,
		"{{issue-body}}", vars.IssueBody,
		"{{issue-url}}", vars.IssueURL,
		"{{branch}}", vars.Branch,
		"{{base-branch}}", vars.BaseBranch,
	).Replace(template)
}

// PromptBuilder は設定されたテンプレートから各ステップのプロンプトを組み立てる
type PromptBuilder struct {
	templates PromptTemplates
}

// NewPromptBuilder は新しいPromptBuilderを作成する
// 空のテンプレートはデフォルトで補う
func NewPromptBuilder(templates PromptTemplates) *PromptBuilder {
	defaults := DefaultPromptTemplates()
	if templates.Implementation == "" {
		templates.Implementation = defaults.Implementation
	}
	if templates.CommitPush == "" {
		templates.CommitPush = defaults.CommitPush
	}
	if templates.PullRequest == "" {
		templates.PullRequest = defaults.PullRequest
	}
	return &PromptBuilder{templates: templates}
}

// Implementation は実装ステップのプロンプトを返す
func (b *PromptBuilder) Implementation(issue types.Issue, branch string) string {
	return ExpandTemplate(b.templates.Implementation, variables(issue, branch, ""))
}

// CommitPush はコミット・プッシュステップのプロンプトを返す
func (b *PromptBuilder) CommitPush(issue types.Issue, branch string) string {
	return ExpandTemplate(b.templates.CommitPush, variables(issue, branch, ""))
}

// PullRequest はPR作成ステップのプロンプトを返す
func (b *PromptBuilder) PullRequest(issue types.Issue, branch, base string) string {
	return ExpandTemplate(b.templates.PullRequest, variables(issue, branch, base))
}

func variables(issue types.Issue, branch, base string) *TemplateVariables {
	number := issue.Key
	if number == "" {
		number = fmt.Sprintf("#%d", issue.Number)
	}
	return &TemplateVariables{
		IssueNumber: number,
		IssueTitle:  issue.Title,
		IssueBody:   issue.Body,
		IssueURL:    issue.URL,
		Branch:      branch,
		BaseBranch:  base,
	}
}
