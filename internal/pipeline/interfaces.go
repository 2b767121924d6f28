package pipeline

import (
	"context"

	"github.com/douhashi/kobito/internal/types"
)

// BranchManager はブランチと作業ツリーを操作するコラボレーター
type BranchManager interface {
	GenerateBranchName(issue types.Issue) string
	SwitchToBranch(ctx context.Context, name, base string) error
	CheckForChanges(ctx context.Context, base string) (bool, error)
	ReturnToBase(ctx context.Context, base string) error
	DeleteBranch(ctx context.Context, name, base string) error
	DiscardChanges(ctx context.Context) error
}

// Agent はプロンプトを実行するコード生成エージェント
// スロットリング時は RateLimited() が true を返すエラー、
// または ErrRateLimited をラップしたエラーを返すこと
type Agent interface {
	Execute(ctx context.Context, prompt string) error
}

// PromptBuilder は各ステップでエージェントに渡すプロンプトを組み立てる
type PromptBuilder interface {
	Implementation(issue types.Issue, branch string) string
	CommitPush(issue types.Issue, branch string) string
	PullRequest(issue types.Issue, branch, base string) string
}

// StateStore は処理状態の永続化先
type StateStore interface {
	Load(issueID string) (types.ProcessingState, bool)
	CreateInitial(issueID, branchName, baseBranch string) types.ProcessingState
	Advance(issueID string, newStep, justCompleted types.ProcessingStep)
	IncrementRetry(issueID string)
	Remove(issueID string)
}
