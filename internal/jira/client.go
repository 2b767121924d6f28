package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/types"
)

// Options はJIRAクライアントの設定
type Options struct {
	URL            string
	Username       string
	Token          string
	JQL            string
	ProcessedLabel string
	MaxResults     int
}

// Client はJIRAを担当Issueのトラッカーとして扱うクライアント
type Client struct {
	client         *jira.Client
	baseURL        string
	jql            string
	processedLabel string
	maxResults     int
	logger         logger.Logger
}

// Error はJIRA APIのエラー
type Error struct {
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("JIRA API error: %v", e.Err)
	}
	return fmt.Sprintf("JIRA API error (status: %d): %v", e.StatusCode, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable はレート制限・サーバーエラー・通信エラーのときtrueを返す
func (e *Error) IsRetryable() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RetryDelay はRetry-Afterヘッダーで指定された待機時間を返す
func (e *Error) RetryDelay() time.Duration { return e.RetryAfter }

// NewClient は新しいJIRAクライアントを作成する
func NewClient(opts Options, log logger.Logger) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("JIRA URL is required")
	}
	if opts.Username == "" {
		return nil, errors.New("JIRA username is required")
	}
	if opts.Token == "" {
		return nil, errors.New("JIRA token is required")
	}
	if opts.JQL == "" {
		return nil, errors.New("JQL is required")
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 100
	}
	if log == nil {
		log = logger.NewNop()
	}

	tp := jira.BasicAuthTransport{
		Username: opts.Username,
		Password: opts.Token,
	}

	client, err := jira.NewClient(tp.Client(), opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create JIRA client: %w", err)
	}

	return &Client{
		client:         client,
		baseURL:        strings.TrimSuffix(opts.URL, "/"),
		jql:            opts.JQL,
		processedLabel: opts.ProcessedLabel,
		maxResults:     opts.MaxResults,
		logger:         log.WithFields("component", "jira_client"),
	}, nil
}

// SearchJQL は処理済みラベル付きのチケットを除外したJQLを返す
func (c *Client) SearchJQL() string {
	if c.processedLabel == "" {
		return c.jql
	}
	return fmt.Sprintf(`(%s) AND (labels IS EMPTY OR labels != "%s")`, c.jql, c.processedLabel)
}

// FetchAssignedIssues はJQLに一致するチケットを取得する
func (c *Client) FetchAssignedIssues(ctx context.Context) ([]types.Issue, error) {
	jql := c.SearchJQL()
	opts := &jira.SearchOptions{
		MaxResults: c.maxResults,
		Fields:     []string{"summary", "description", "labels", "assignee"},
	}

	var result []types.Issue
	for {
		issues, resp, err := c.client.Issue.SearchWithContext(ctx, jql, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to search JIRA issues: %w", wrapError(resp, err))
		}

		for _, issue := range issues {
			if c.hasProcessedLabel(issue) {
				continue
			}
			result = append(result, c.toIssue(issue))
		}

		if len(issues) < opts.MaxResults || resp == nil || opts.StartAt+len(issues) >= resp.Total {
			break
		}
		opts.StartAt += len(issues)
	}

	c.logger.Debug("Fetched assigned issues", "jql", jql, "count", len(result))
	return result, nil
}

// GetIssue はキーを指定してチケットを取得する
func (c *Client) GetIssue(ctx context.Context, issueKey string) (types.Issue, error) {
	issue, resp, err := c.client.Issue.GetWithContext(ctx, issueKey, nil)
	if err != nil {
		return types.Issue{}, fmt.Errorf("failed to get JIRA issue %s: %w", issueKey, wrapError(resp, err))
	}
	return c.toIssue(*issue), nil
}

// MarkIssueAsProcessed は処理済みラベルをチケットに追加する
func (c *Client) MarkIssueAsProcessed(ctx context.Context, issueKey string) error {
	if c.processedLabel == "" {
		return nil
	}

	data := map[string]interface{}{
		"update": map[string]interface{}{
			"labels": []map[string]interface{}{
				{"add": c.processedLabel},
			},
		},
	}

	resp, err := c.client.Issue.UpdateIssueWithContext(ctx, issueKey, data)
	if err != nil {
		return fmt.Errorf("failed to add label %q to %s: %w", c.processedLabel, issueKey, wrapError(resp, err))
	}

	c.logger.Info("Marked issue as processed", "issueKey", issueKey, "label", c.processedLabel)
	return nil
}

func (c *Client) hasProcessedLabel(issue jira.Issue) bool {
	if c.processedLabel == "" || issue.Fields == nil {
		return false
	}
	for _, label := range issue.Fields.Labels {
		if label == c.processedLabel {
			return true
		}
	}
	return false
}

func (c *Client) toIssue(issue jira.Issue) types.Issue {
	result := types.Issue{
		ID:     issue.Key,
		Key:    issue.Key,
		Number: keyNumber(issue.Key),
		URL:    fmt.Sprintf("%s/browse/%s", c.baseURL, issue.Key),
	}
	if issue.Fields != nil {
		result.Title = issue.Fields.Summary
		result.Body = issue.Fields.Description
		if issue.Fields.Assignee != nil {
			result.Assignee = issue.Fields.Assignee.DisplayName
		}
	}
	return result
}

// keyNumber は "PROJ-12" の数値部分を返す
func keyNumber(key string) int {
	idx := strings.LastIndex(key, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(key[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

func wrapError(resp *jira.Response, err error) error {
	e := &Error{Err: err}
	if resp != nil && resp.Response != nil {
		e.StatusCode = resp.StatusCode
		if s := resp.Header.Get("Retry-After"); s != "" {
			if seconds, convErr := strconv.Atoi(s); convErr == nil {
				e.RetryAfter = time.Duration(seconds) * time.Second
			}
		}
	}
	return e
}
