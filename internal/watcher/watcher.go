package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/types"
)

// Tracker は担当Issueを取得し、処理済みを記録する課題トラッカー
type Tracker interface {
	FetchAssignedIssues(ctx context.Context) ([]types.Issue, error)
	MarkIssueAsProcessed(ctx context.Context, issueID string) error
}

// IssueSink は検出したIssueの受け取り先
type IssueSink interface {
	Enqueue(issues []types.Issue) int
}

// IssueWatcher はトラッカーをポーリングし、新しいIssueをキューへ渡す
type IssueWatcher struct {
	tracker        Tracker
	sink           IssueSink
	pollInterval   time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	logger         logger.Logger

	mu sync.Mutex
	// seen は直近の取得結果に含まれていたIssue
	seen map[string]bool
	// suppressed は処理済みとして二度とキューに入れないIssue
	suppressed map[string]bool
	polling    bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewIssueWatcher は新しいIssueWatcherを作成する
func NewIssueWatcher(tracker Tracker, sink IssueSink, log logger.Logger) (*IssueWatcher, error) {
	if tracker == nil {
		return nil, errors.New("tracker is required")
	}
	if sink == nil {
		return nil, errors.New("issue sink is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &IssueWatcher{
		tracker:        tracker,
		sink:           sink,
		pollInterval:   30 * time.Second,
		maxRetries:     3,
		retryBaseDelay: time.Second,
		logger:         log.WithFields("component", "issue_watcher"),
		seen:           make(map[string]bool),
		suppressed:     make(map[string]bool),
	}, nil
}

// SetPollInterval はポーリング間隔を設定する
func (w *IssueWatcher) SetPollInterval(interval time.Duration) error {
	if interval < time.Second {
		return errors.New("poll interval must be at least 1 second")
	}
	w.pollInterval = interval
	return nil
}

// GetPollInterval は現在のポーリング間隔を取得する
func (w *IssueWatcher) GetPollInterval() time.Duration {
	return w.pollInterval
}

// SetRetry は取得失敗時のリトライ回数と初回待機時間を設定する
func (w *IssueWatcher) SetRetry(maxRetries int, baseDelay time.Duration) {
	w.maxRetries = maxRetries
	w.retryBaseDelay = baseDelay
}

// Start はIssue監視を開始する。監視中なら何もしない
func (w *IssueWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.polling {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cannot start issue watcher: %w", err)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.polling = true

	go w.run(pollCtx, w.done)

	w.logger.Info("Starting issue watcher", "interval", w.pollInterval)
	return nil
}

// Stop はIssue監視を停止する。停止中なら何もしない
func (w *IssueWatcher) Stop() {
	w.mu.Lock()
	if !w.polling {
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("Stopping issue watcher")
}

// IsPolling は監視中かを返す
func (w *IssueWatcher) IsPolling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

func (w *IssueWatcher) run(ctx context.Context, done chan struct{}) {
	defer func() {
		w.mu.Lock()
		w.polling = false
		w.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// 初回実行
	w.checkIssues(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkIssues(ctx)
		}
	}
}

func (w *IssueWatcher) checkIssues(ctx context.Context) {
	if _, err := w.Poll(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("Failed to fetch assigned issues", "error", err)
	}
}

// Poll はトラッカーを1回問い合わせ、新しく見つかったIssueをキューへ渡す
// キューに追加された件数を返す
func (w *IssueWatcher) Poll(ctx context.Context) (int, error) {
	var issues []types.Issue
	err := RetryWithBackoff(ctx, w.logger, w.maxRetries, w.retryBaseDelay, func() error {
		var err error
		issues, err = w.tracker.FetchAssignedIssues(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	fresh := w.filterNew(issues)
	if len(fresh) == 0 {
		return 0, nil
	}

	for _, issue := range fresh {
		w.logger.Info("New issue detected", "issueId", issue.ID, "issue", issue.DisplayName(), "title", issue.Title)
	}
	return w.sink.Enqueue(fresh), nil
}

// filterNew は未検出のIssueを返し、seenを今回の取得結果で置き換える
// 取得結果から消えたIssueは再度割り当てられたときに検出し直す
func (w *IssueWatcher) filterNew(issues []types.Issue) []types.Issue {
	w.mu.Lock()
	defer w.mu.Unlock()

	current := make(map[string]bool, len(issues))
	var fresh []types.Issue
	for _, issue := range issues {
		if issue.ID == "" || current[issue.ID] {
			continue
		}
		current[issue.ID] = true
		if w.seen[issue.ID] || w.suppressed[issue.ID] {
			continue
		}
		fresh = append(fresh, issue)
	}
	w.seen = current
	return fresh
}

// MarkIssueAsProcessed はトラッカーへ処理済みを記録する
// トラッカーへの記録に失敗しても、このプロセスでは二度とキューに入れない
func (w *IssueWatcher) MarkIssueAsProcessed(ctx context.Context, issueID string) error {
	w.mu.Lock()
	w.suppressed[issueID] = true
	w.mu.Unlock()

	return RetryWithBackoff(ctx, w.logger, w.maxRetries, w.retryBaseDelay, func() error {
		return w.tracker.MarkIssueAsProcessed(ctx, issueID)
	})
}

// IsSuppressed はIssueが処理済みとして除外されているかを返す
func (w *IssueWatcher) IsSuppressed(issueID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.suppressed[issueID]
}
