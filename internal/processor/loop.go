package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/pipeline"
	"github.com/douhashi/kobito/internal/queue"
	"github.com/douhashi/kobito/internal/types"
)

// IssueProcessor は1つのIssueを処理するパイプライン
type IssueProcessor interface {
	Process(ctx context.Context, issue types.Issue, baseBranch string) pipeline.Result
}

// Notifier はIssueの処理済みをトラッカーへ通知する
type Notifier interface {
	MarkIssueAsProcessed(ctx context.Context, issueID string) error
}

// RateLimitPolicy はスロットリングされた結果の扱いを決める
type RateLimitPolicy interface {
	IsRateLimited(result pipeline.Result) bool
	HandleRateLimit(issue types.Issue, result pipeline.Result) bool
	Cooldown(retryCount int) time.Duration
}

// Config は処理ループの設定
type Config struct {
	Interval   time.Duration
	BaseBranch string
}

// Loop はキューの先頭Issueを1件ずつ処理するシングルワーカー
type Loop struct {
	config    Config
	queue     *queue.WorkQueue
	processor IssueProcessor
	notifier  Notifier
	policy    RateLimitPolicy
	logger    logger.Logger
	now       func() time.Time

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	done        chan struct{}
	resumeAfter time.Time
}

// New は新しい処理ループを作成する
func New(cfg Config, q *queue.WorkQueue, proc IssueProcessor, notifier Notifier, policy RateLimitPolicy, log logger.Logger) (*Loop, error) {
	if q == nil {
		return nil, fmt.Errorf("work queue is required")
	}
	if proc == nil {
		return nil, fmt.Errorf("issue processor is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if policy == nil {
		return nil, fmt.Errorf("rate limit policy is required")
	}
	if cfg.Interval < time.Second {
		return nil, fmt.Errorf("process interval must be at least 1 second")
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Loop{
		config:    cfg,
		queue:     q,
		processor: proc,
		notifier:  notifier,
		policy:    policy,
		logger:    log.WithFields("component", "processing_loop"),
		now:       time.Now,
	}, nil
}

// Start は処理ループを開始する。実行中なら何もしない
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running = true

	go l.run(loopCtx, l.done)

	l.logger.Info("Processing loop started", "interval", l.config.Interval, "baseBranch", l.config.BaseBranch)
	return nil
}

// Stop は処理ループを停止し、ゴルーチンの終了を待つ。停止中なら何もしない
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	<-done
	l.queue.SetProcessing(false)

	l.logger.Info("Processing loop stopped")
}

// IsRunning はループが実行中かを返す
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	l.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.RunOnce(ctx)
		}
	}
}

// RunOnce は1サイクルを同期的に実行する
// Issueを処理した場合はその結果とtrueを返す
func (l *Loop) RunOnce(ctx context.Context) (pipeline.Result, bool) {
	if ctx.Err() != nil {
		return pipeline.Result{}, false
	}
	if l.queue.IsEmpty() {
		return pipeline.Result{}, false
	}
	if wait := l.cooldownRemaining(); wait > 0 {
		l.logger.Debug("Waiting for rate limit cooldown", "remaining", wait)
		return pipeline.Result{}, false
	}
	if !l.queue.TryStartProcessing() {
		return pipeline.Result{}, false
	}
	defer l.queue.SetProcessing(false)

	issue, ok := l.queue.Peek()
	if !ok {
		return pipeline.Result{}, false
	}

	result := l.process(ctx, issue)
	l.handle(ctx, issue, result)
	return result, true
}

// CooldownRemaining は次に処理を試みるまでの残り時間を返す
func (l *Loop) CooldownRemaining() time.Duration {
	return l.cooldownRemaining()
}

func (l *Loop) cooldownRemaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resumeAfter.IsZero() {
		return 0
	}
	remaining := l.resumeAfter.Sub(l.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (l *Loop) setCooldown(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d <= 0 {
		l.resumeAfter = time.Time{}
		return
	}
	l.resumeAfter = l.now().Add(d)
}

func (l *Loop) process(ctx context.Context, issue types.Issue) (result pipeline.Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("unexpected error while processing issue %s: %v", issue.DisplayName(), r)
			result = pipeline.Result{Kind: pipeline.ResultFailure, Reason: err.Error(), Err: err}
		}
	}()

	l.logger.Info("Processing issue", "issueId", issue.ID, "issueNumber", issue.Number, "title", issue.Title)
	return l.processor.Process(ctx, issue, l.config.BaseBranch)
}

func (l *Loop) handle(ctx context.Context, issue types.Issue, result pipeline.Result) {
	switch {
	case l.policy.IsRateLimited(result):
		if l.policy.HandleRateLimit(issue, result) {
			l.queue.Remove(issue.ID)
			return
		}
		retry := 0
		if result.State != nil {
			retry = result.State.RetryCount
		}
		l.setCooldown(l.policy.Cooldown(retry))

	case result.IsSuccess():
		l.logger.Info("Issue processed successfully", "issueId", issue.ID, "issueNumber", issue.Number, "branch", result.BranchName)
		l.finish(ctx, issue)

	default:
		l.logger.Error("Issue processing failed", "issueId", issue.ID, "issueNumber", issue.Number, "reason", result.Reason)
		l.finish(ctx, issue)
	}
}

// finish はIssueをキューから外し、処理済みとして通知する
func (l *Loop) finish(ctx context.Context, issue types.Issue) {
	l.queue.Remove(issue.ID)
	l.setCooldown(0)

	markCtx := context.WithoutCancel(ctx)
	if err := l.notifier.MarkIssueAsProcessed(markCtx, issue.ID); err != nil {
		l.logger.Warn("Failed to mark issue as processed", "issueId", issue.ID, "issueNumber", issue.Number, "error", err)
	}
}
