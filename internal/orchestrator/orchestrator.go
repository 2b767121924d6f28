package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/douhashi/kobito/internal/claude"
	"github.com/douhashi/kobito/internal/config"
	"github.com/douhashi/kobito/internal/git"
	"github.com/douhashi/kobito/internal/github"
	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/paths"
	"github.com/douhashi/kobito/internal/pipeline"
	"github.com/douhashi/kobito/internal/processor"
	"github.com/douhashi/kobito/internal/queue"
	"github.com/douhashi/kobito/internal/ratelimit"
	"github.com/douhashi/kobito/internal/state"
	"github.com/douhashi/kobito/internal/types"
	"github.com/douhashi/kobito/internal/watcher"
)

// Options はOrchestratorの構築に必要な情報
// Tracker, Branches, Agent が nil の場合は設定から実装を作成する
type Options struct {
	Config   *config.Config
	RepoPath string
	Paths    paths.PathManager
	Logger   logger.Logger

	Tracker  Tracker
	Branches pipeline.BranchManager
	Agent    pipeline.Agent
}

// Status はOrchestratorの状態のスナップショット
type Status struct {
	Polling             bool
	PollInterval        time.Duration
	Processing          bool
	QueueSize           int
	NextIssue           *types.Issue
	PendingStates       []string
	PersistenceFailures int
}

// Orchestrator は監視・キュー・パイプライン・処理ループを組み立て、ライフサイクルを管理する
type Orchestrator struct {
	config     *config.Config
	identifier string
	logger     logger.Logger

	tracker  Tracker
	queue    *queue.WorkQueue
	store    *state.Store
	pipeline *pipeline.Pipeline
	policy   *ratelimit.Policy
	loop     *processor.Loop
	watcher  *watcher.IssueWatcher

	persistenceFailures atomic.Int64

	mu      sync.Mutex
	started bool
}

// New は設定からOrchestratorを作成する
func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.RepoPath == "" {
		return nil, errors.New("repository path is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Paths == nil {
		opts.Paths = paths.NewPathManager("")
	}
	cfg := opts.Config

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	identifier, err := ResolveRepository(ctx, cfg, opts.RepoPath, log)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := &Orchestrator{
		config:     cfg,
		identifier: identifier,
		logger:     log.WithFields("component", "orchestrator", "repository", identifier),
	}

	o.tracker = opts.Tracker
	if o.tracker == nil {
		if o.tracker, err = NewTracker(cfg, log); err != nil {
			return nil, fmt.Errorf("failed to create tracker client: %w", err)
		}
	}

	stateDir := cfg.Pipeline.StateDir
	if stateDir == "" {
		stateDir = opts.Paths.StateDir(identifier)
	}
	o.store = state.NewStore(stateDir, log)
	o.store.SetWarningHandler(func(op, issueID string, err error) {
		o.persistenceFailures.Add(1)
	})

	branches := opts.Branches
	if branches == nil {
		branches = git.NewBranchManager(opts.RepoPath, cfg.Pipeline.BranchPrefix, log)
	}
	agent := opts.Agent
	if agent == nil {
		agent = claude.NewExecutor(cfg.Claude, opts.RepoPath, log)
	}

	o.pipeline, err = pipeline.New(o.store, branches, agent, claude.NewPromptBuilder(cfg.Claude.Prompts), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	o.queue = queue.New()
	o.policy = ratelimit.NewPolicy(log)

	o.watcher, err = watcher.NewIssueWatcher(o.tracker, o.queue, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue watcher: %w", err)
	}
	if err := o.watcher.SetPollInterval(cfg.Watch.PollInterval); err != nil {
		return nil, err
	}
	o.watcher.SetRetry(cfg.Watch.MaxRetries, cfg.Watch.RetryBaseDelay)

	o.loop, err = processor.New(processor.Config{
		Interval:   cfg.Pipeline.ProcessInterval,
		BaseBranch: cfg.Pipeline.BaseBranch,
	}, o.queue, o.pipeline, o.watcher, o.policy, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create processing loop: %w", err)
	}

	return o, nil
}

// ResolveRepository は未設定のowner/repoとベースブランチをリポジトリから補完し、
// 状態ディレクトリやPIDファイルに使う識別子を返す
func ResolveRepository(ctx context.Context, cfg *config.Config, repoPath string, log logger.Logger) (string, error) {
	if log == nil {
		log = logger.NewNop()
	}
	repo := git.NewRepository(repoPath, log)

	if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
		info, err := repo.GitHubRepoInfo(ctx)
		switch {
		case err == nil:
			if cfg.GitHub.Owner == "" {
				cfg.GitHub.Owner = info.Owner
			}
			if cfg.GitHub.Repo == "" {
				cfg.GitHub.Repo = info.Repo
			}
		case cfg.Tracker == config.TrackerGitHub:
			return "", fmt.Errorf("failed to determine GitHub repository (set github.owner and github.repo): %w", err)
		}
	}

	if cfg.Pipeline.BaseBranch == "" {
		branch, err := resolveBaseBranch(ctx, cfg, repo, log)
		if err != nil {
			return "", err
		}
		cfg.Pipeline.BaseBranch = branch
	}

	if cfg.GitHub.Owner != "" && cfg.GitHub.Repo != "" {
		return cfg.GitHub.Owner + "/" + cfg.GitHub.Repo, nil
	}
	return filepath.Base(repoPath), nil
}

// resolveBaseBranch はorigin/HEAD、GitHubの既定ブランチ、ローカルのmain/masterの順に探す
// 再起動時に作業ブランチをベースと取り違えないよう、現在のHEADは使わない
func resolveBaseBranch(ctx context.Context, cfg *config.Config, repo *git.Repository, log logger.Logger) (string, error) {
	branch, err := repo.RemoteDefaultBranch(ctx)
	if err == nil {
		return branch, nil
	}
	log.Debug("origin/HEAD is not available", "error", err)

	if cfg.Tracker == config.TrackerGitHub && cfg.GitHub.Token != "" && cfg.GitHub.Owner != "" && cfg.GitHub.Repo != "" {
		client, err := github.NewClient(github.Options{
			Token:   cfg.GitHub.Token,
			Owner:   cfg.GitHub.Owner,
			Repo:    cfg.GitHub.Repo,
			Retry:   github.NewRetryStrategy(cfg.Watch.MaxRetries, cfg.Watch.RetryBaseDelay),
			BaseURL: cfg.GitHub.APIURL,
		}, log)
		if err == nil {
			branch, err := client.DefaultBranch(ctx)
			if err == nil {
				return branch, nil
			}
			log.Warn("Failed to get default branch from GitHub", "error", err)
		}
	}

	branch, err = repo.LocalDefaultBranch(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to determine base branch (set pipeline.base_branch): %w", err)
	}
	return branch, nil
}

// Start は処理ループ、続いてIssue監視を開始する
// 途中で失敗した場合は起動済みのコンポーネントを全て停止する
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return nil
	}

	if pending := o.store.ListPending(); len(pending) > 0 {
		o.logger.Info("Found persisted processing states", "issueIds", pending, "count", len(pending))
	}

	if err := o.loop.Start(ctx); err != nil {
		o.stopAll()
		return fmt.Errorf("failed to start processing loop: %w", err)
	}
	if err := o.watcher.Start(ctx); err != nil {
		o.stopAll()
		return fmt.Errorf("failed to start issue watcher: %w", err)
	}

	o.started = true
	o.logger.Info("Orchestrator started",
		"tracker", o.config.Tracker,
		"pollInterval", o.watcher.GetPollInterval(),
		"baseBranch", o.config.Pipeline.BaseBranch,
		"stateDir", o.store.Dir(),
	)
	return nil
}

// Stop は監視と処理ループを停止する。何度呼んでもよい
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.started {
		return
	}
	o.stopAll()
	o.started = false
	o.logger.Info("Orchestrator stopped")
}

func (o *Orchestrator) stopAll() {
	o.watcher.Stop()
	o.loop.Stop()
}

// RunOnce はIssueを1回取得し、キューが空になるかスロットリングされるまで処理する
func (o *Orchestrator) RunOnce(ctx context.Context) ([]pipeline.Result, error) {
	if _, err := o.watcher.Poll(ctx); err != nil {
		return nil, err
	}

	var results []pipeline.Result
	for ctx.Err() == nil {
		result, processed := o.loop.RunOnce(ctx)
		if !processed {
			break
		}
		results = append(results, result)
		if result.NeedsResume() {
			break
		}
	}
	return results, ctx.Err()
}

// Status は現在の状態を返す
func (o *Orchestrator) Status() Status {
	qs := o.queue.Status()
	return Status{
		Polling:             o.watcher.IsPolling(),
		PollInterval:        o.watcher.GetPollInterval(),
		Processing:          qs.Processing,
		QueueSize:           qs.Size,
		NextIssue:           qs.NextIssue,
		PendingStates:       o.store.ListPending(),
		PersistenceFailures: int(o.persistenceFailures.Load()),
	}
}

// Identifier はリポジトリの識別子を返す
func (o *Orchestrator) Identifier() string { return o.identifier }

// Tracker はトラッカークライアントを返す
func (o *Orchestrator) Tracker() Tracker { return o.tracker }

// Pipeline はIssue処理パイプラインを返す
func (o *Orchestrator) Pipeline() *pipeline.Pipeline { return o.pipeline }

// Store は処理状態のストアを返す
func (o *Orchestrator) Store() *state.Store { return o.store }

// Policy はレート制限ポリシーを返す
func (o *Orchestrator) Policy() *ratelimit.Policy { return o.policy }
