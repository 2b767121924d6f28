package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/types"
	gh "github.com/google/go-github/v50/github"
	"golang.org/x/oauth2"
)

// Options はGitHubクライアントの設定
type Options struct {
	Token          string
	Owner          string
	Repo           string
	Assignee       string
	ProcessedLabel string
	Retry          RetryStrategy
	// BaseURL はAPIのベースURL。空の場合はgithub.com
	BaseURL string
}

// Client はGitHub APIを担当Issueのトラッカーとして扱うクライアント
type Client struct {
	github         *gh.Client
	owner          string
	repo           string
	assignee       string
	processedLabel string
	retry          RetryStrategy
	logger         logger.Logger
}

// NewClient は新しいGitHub APIクライアントを作成する
func NewClient(opts Options, log logger.Logger) (*Client, error) {
	if opts.Token == "" {
		return nil, errors.New("GitHub token is required")
	}
	if opts.Owner == "" {
		return nil, errors.New("owner is required")
	}
	if opts.Repo == "" {
		return nil, errors.New("repo is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryStrategy()
	}

	log = log.WithFields("component", "github_client", "owner", opts.Owner, "repo", opts.Repo)

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	tc.Transport = &loggingRoundTripper{base: tc.Transport, logger: log}

	client := gh.NewClient(tc)
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		client.BaseURL = u
	}

	return &Client{
		github:         client,
		owner:          opts.Owner,
		repo:           opts.Repo,
		assignee:       opts.Assignee,
		processedLabel: opts.ProcessedLabel,
		retry:          opts.Retry,
		logger:         log,
	}, nil
}

// FetchAssignedIssues は担当者に割り当てられたオープンなIssueを取得する
// プルリクエストと処理済みラベル付きのIssueは除外する
func (c *Client) FetchAssignedIssues(ctx context.Context) ([]types.Issue, error) {
	assignee, err := c.resolveAssignee(ctx)
	if err != nil {
		return nil, err
	}

	opts := &gh.IssueListByRepoOptions{
		State:     "open",
		Assignee:  assignee,
		Sort:      "created",
		Direction: "asc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	var result []types.Issue
	for {
		var (
			issues []*gh.Issue
			resp   *gh.Response
		)
		err := RetryWithStrategy(ctx, c.retry, c.logger, func() error {
			var err error
			issues, resp, err = c.github.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list issues: %w", withAuthHint(err))
		}

		for _, issue := range issues {
			if issue.IsPullRequest() || c.hasProcessedLabel(issue) {
				continue
			}
			result = append(result, toIssue(issue))
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.logger.Debug("Fetched assigned issues", "assignee", assignee, "count", len(result))
	return result, nil
}

// GetIssue は番号を指定してIssueを取得する
func (c *Client) GetIssue(ctx context.Context, issueID string) (types.Issue, error) {
	number, err := parseNumber(issueID)
	if err != nil {
		return types.Issue{}, err
	}

	var issue *gh.Issue
	err = RetryWithStrategy(ctx, c.retry, c.logger, func() error {
		var err error
		issue, _, err = c.github.Issues.Get(ctx, c.owner, c.repo, number)
		return err
	})
	if err != nil {
		if IsNotFoundError(err) {
			return types.Issue{}, fmt.Errorf("issue #%d not found in %s/%s: %w", number, c.owner, c.repo, err)
		}
		return types.Issue{}, fmt.Errorf("failed to get issue #%d: %w", number, withAuthHint(err))
	}
	return toIssue(issue), nil
}

// DefaultBranch はリポジトリの既定ブランチを返す
func (c *Client) DefaultBranch(ctx context.Context) (string, error) {
	var repo *gh.Repository
	err := RetryWithStrategy(ctx, c.retry, c.logger, func() error {
		var err error
		repo, _, err = c.github.Repositories.Get(ctx, c.owner, c.repo)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to get repository %s/%s: %w", c.owner, c.repo, withAuthHint(err))
	}
	branch := repo.GetDefaultBranch()
	if branch == "" {
		return "", fmt.Errorf("repository %s/%s has no default branch", c.owner, c.repo)
	}
	return branch, nil
}

// MarkIssueAsProcessed は処理済みラベルをIssueに付与する
func (c *Client) MarkIssueAsProcessed(ctx context.Context, issueID string) error {
	if c.processedLabel == "" {
		return nil
	}

	number, err := parseNumber(issueID)
	if err != nil {
		return err
	}

	err = RetryWithStrategy(ctx, c.retry, c.logger, func() error {
		_, _, err := c.github.Issues.AddLabelsToIssue(ctx, c.owner, c.repo, number, []string{c.processedLabel})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to add label %q to issue #%d: %w", c.processedLabel, number, err)
	}

	c.logger.Info("Marked issue as processed", "issueNumber", number, "label", c.processedLabel)
	return nil
}

// resolveAssignee は設定された担当者、未設定なら認証ユーザーを返す
func (c *Client) resolveAssignee(ctx context.Context) (string, error) {
	if c.assignee != "" {
		return c.assignee, nil
	}

	var user *gh.User
	err := RetryWithStrategy(ctx, c.retry, c.logger, func() error {
		var err error
		user, _, err = c.github.Users.Get(ctx, "")
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to get authenticated user: %w", withAuthHint(err))
	}

	c.assignee = user.GetLogin()
	return c.assignee, nil
}

func (c *Client) hasProcessedLabel(issue *gh.Issue) bool {
	if c.processedLabel == "" {
		return false
	}
	for _, label := range issue.Labels {
		if label.GetName() == c.processedLabel {
			return true
		}
	}
	return false
}

func toIssue(issue *gh.Issue) types.Issue {
	return types.Issue{
		ID:       strconv.Itoa(issue.GetNumber()),
		Number:   issue.GetNumber(),
		Title:    issue.GetTitle(),
		Body:     issue.GetBody(),
		URL:      issue.GetHTMLURL(),
		Assignee: issue.GetAssignee().GetLogin(),
	}
}

func parseNumber(issueID string) (int, error) {
	number, err := strconv.Atoi(strings.TrimPrefix(issueID, "#"))
	if err != nil || number <= 0 {
		return 0, fmt.Errorf("invalid GitHub issue number: %q", issueID)
	}
	return number, nil
}

var _ http.RoundTripper = (*loggingRoundTripper)(nil)
