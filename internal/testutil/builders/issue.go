package builders

import (
	"fmt"
	"strconv"

	"github.com/douhashi/kobito/internal/types"
)

// IssueBuilder builds types.Issue instances for testing
type IssueBuilder struct {
	issue types.Issue
}

// NewIssueBuilder creates a new IssueBuilder with sensible defaults
func NewIssueBuilder() *IssueBuilder {
	return (&IssueBuilder{issue: types.Issue{Title: "Default Issue"}}).WithNumber(1)
}

// WithNumber はGitHub Issueとして番号とIDとURLを設定する
func (b *IssueBuilder) WithNumber(number int) *IssueBuilder {
	b.issue.Number = number
	b.issue.ID = strconv.Itoa(number)
	b.issue.Key = ""
	b.issue.URL = fmt.Sprintf("https://github.com/o/r/issues/%d", number)
	return b
}

// WithKey はJIRAチケットとしてキーを設定する
func (b *IssueBuilder) WithKey(key string, number int) *IssueBuilder {
	b.issue.Number = number
	b.issue.ID = key
	b.issue.Key = key
	b.issue.URL = "https://example.atlassian.net/browse/" + key
	return b
}

// WithTitle sets the issue title
func (b *IssueBuilder) WithTitle(title string) *IssueBuilder {
	b.issue.Title = title
	return b
}

// WithBody sets the issue body
func (b *IssueBuilder) WithBody(body string) *IssueBuilder {
	b.issue.Body = body
	return b
}

// Build returns the built issue
func (b *IssueBuilder) Build() types.Issue {
	return b.issue
}
