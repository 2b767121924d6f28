package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/douhashi/kobito/internal/daemon"
	"github.com/douhashi/kobito/internal/git"
	"github.com/douhashi/kobito/internal/orchestrator"
	"github.com/douhashi/kobito/internal/paths"
	"github.com/douhashi/kobito/internal/pipeline"
	"github.com/douhashi/kobito/internal/ratelimit"
	"github.com/douhashi/kobito/internal/state"
)

// テスト用にモック可能な関数変数
var (
	findRepoRootFunc = func() (string, error) {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return git.FindRoot(wd)
	}
	newPathManagerFunc   = func() paths.PathManager { return paths.NewPathManager("") }
	newDaemonManagerFunc = daemon.NewManager
	newOrchestratorFunc  = orchestrator.New
)

// repoContext はコマンドが対象とするリポジトリ
type repoContext struct {
	path       string
	identifier string
	paths      paths.PathManager
}

func resolveRepoContext(ctx context.Context) (*repoContext, error) {
	repoPath, err := findRepoRootFunc()
	if err != nil {
		return nil, fmt.Errorf("gitリポジトリ内で実行してください: %w", err)
	}

	identifier, err := orchestrator.ResolveRepository(ctx, appConfig, repoPath, appLog)
	if err != nil {
		return nil, err
	}

	return &repoContext{
		path:       repoPath,
		identifier: identifier,
		paths:      newPathManagerFunc(),
	}, nil
}

func (r *repoContext) pidFile() string {
	return r.paths.PIDFile(r.identifier)
}

func (r *repoContext) logFile() string {
	return r.paths.LogFile(r.identifier)
}

// stateStore は処理状態のストアを開く。pipeline.state_dir が優先される
func (r *repoContext) stateStore() *state.Store {
	dir := appConfig.Pipeline.StateDir
	if dir == "" {
		dir = r.paths.StateDir(r.identifier)
	}
	return state.NewStore(dir, appLog)
}

// describeResult はパイプラインの結果を1行で表す
func describeResult(policy *ratelimit.Policy, result pipeline.Result) string {
	switch {
	case result.IsSuccess():
		return fmt.Sprintf("completed (branch: %s)", result.BranchName)
	case result.NeedsResume() && result.Err != nil && pipeline.IsRateLimited(result.Err):
		return policy.Describe(result)
	case result.NeedsResume():
		return fmt.Sprintf("paused: %s", result.Reason)
	default:
		return fmt.Sprintf("failed: %s", result.Reason)
	}
}
