package orchestrator

import (
	"context"
	"fmt"

	"github.com/douhashi/kobito/internal/config"
	"github.com/douhashi/kobito/internal/github"
	"github.com/douhashi/kobito/internal/jira"
	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/types"
	"github.com/douhashi/kobito/internal/watcher"
)

// Tracker は監視とresumeコマンドの両方で使うトラッカー
type Tracker interface {
	watcher.Tracker
	GetIssue(ctx context.Context, issueID string) (types.Issue, error)
}

// NewTracker は設定に応じてGitHubまたはJIRAのクライアントを作成する
func NewTracker(cfg *config.Config, log logger.Logger) (Tracker, error) {
	switch cfg.Tracker {
	case config.TrackerGitHub:
		return github.NewClient(github.Options{
			Token:          cfg.GitHub.Token,
			Owner:          cfg.GitHub.Owner,
			Repo:           cfg.GitHub.Repo,
			Assignee:       cfg.GitHub.Assignee,
			ProcessedLabel: cfg.GitHub.ProcessedLabel,
			Retry:          github.NewRetryStrategy(cfg.Watch.MaxRetries, cfg.Watch.RetryBaseDelay),
			BaseURL:        cfg.GitHub.APIURL,
		}, log)
	case config.TrackerJira:
		return jira.NewClient(jira.Options{
			URL:            cfg.Jira.URL,
			Username:       cfg.Jira.Username,
			Token:          cfg.Jira.Token,
			JQL:            cfg.Jira.JQL,
			ProcessedLabel: cfg.Jira.ProcessedLabel,
		}, log)
	default:
		return nil, fmt.Errorf("unknown tracker: %q", cfg.Tracker)
	}
}
