package pipeline

import (
	"context"
	"fmt"

	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/types"
	"github.com/google/uuid"
)

// Pipeline は1つのIssueをブランチ作成からPR作成まで進める再開可能なパイプライン
type Pipeline struct {
	store    StateStore
	branches BranchManager
	agent    Agent
	prompts  PromptBuilder
	logger   logger.Logger
}

// New は新しいPipelineを作成する
func New(store StateStore, branches BranchManager, agent Agent, prompts PromptBuilder, log logger.Logger) (*Pipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if branches == nil {
		return nil, fmt.Errorf("branch manager is required")
	}
	if agent == nil {
		return nil, fmt.Errorf("agent is required")
	}
	if prompts == nil {
		return nil, fmt.Errorf("prompt builder is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Pipeline{
		store:    store,
		branches: branches,
		agent:    agent,
		prompts:  prompts,
		logger:   log.WithFields("component", "pipeline"),
	}, nil
}

// Process はIssueを最初の未完了ステップから実行する
// 永続化された状態がなければbaseBranchから新しいブランチを作る状態を作成する
func (p *Pipeline) Process(ctx context.Context, issue types.Issue, baseBranch string) Result {
	log := p.logger.WithFields(
		"runId", uuid.NewString(),
		"issueId", issue.ID,
		"issueNumber", issue.Number,
	)

	st, ok := p.store.Load(issue.ID)
	if ok {
		log.Info("Resuming issue processing",
			"branch", st.BranchName,
			"currentStep", st.CurrentStep,
			"completedSteps", st.CompletedSteps,
			"retryCount", st.RetryCount,
		)
	} else {
		branch := p.branches.GenerateBranchName(issue)
		st = p.store.CreateInitial(issue.ID, branch, baseBranch)
		log.Info("Starting issue processing", "branch", branch, "baseBranch", baseBranch)
	}

	return p.run(ctx, issue, st, log)
}

// ResumeIssue は永続化された状態から処理を再開する
func (p *Pipeline) ResumeIssue(ctx context.Context, issueID string, issue types.Issue) Result {
	st, ok := p.store.Load(issueID)
	if !ok {
		return failure(ErrNoState.Error(), ErrNoState)
	}
	if issue.ID == "" {
		issue.ID = issueID
	}
	return p.Process(ctx, issue, st.BaseBranch)
}

// run は状態機械を駆動する。遷移ごとに状態を保存する
func (p *Pipeline) run(ctx context.Context, issue types.Issue, st types.ProcessingState, log logger.Logger) Result {
	for {
		var out Outcome
		if st.CurrentStep != types.StepCompleted {
			log.Info("Executing step", "step", st.CurrentStep)
			out = p.execute(ctx, issue, st)
		}

		next, tr := Step(st, out)

		switch tr.Kind {
		case TransitionAdvance:
			p.store.Advance(issue.ID, next.CurrentStep, tr.Completed)
			log.Info("Step completed", "step", tr.Completed, "nextStep", next.CurrentStep)
			st = next

		case TransitionPause:
			if out.Kind == OutcomeThrottled {
				p.store.IncrementRetry(issue.ID)
			}
			log.Warn("Issue processing paused",
				"step", next.CurrentStep,
				"retryCount", next.RetryCount,
				"reason", tr.Reason,
				"error", out.Err,
			)
			return needsResume(next, tr.Reason, out.Err)

		case TransitionAbort:
			log.Error("Issue processing failed",
				"step", st.CurrentStep,
				"reason", tr.Reason,
			)
			p.cleanup(ctx, st, log)
			err := out.Err
			if out.Kind == OutcomeNoChanges {
				err = ErrNoChanges
			}
			return failure(tr.Reason, err)

		case TransitionDone:
			// 次のIssueを作業ブランチから派生させないようベースに戻る
			if err := p.branches.ReturnToBase(context.WithoutCancel(ctx), st.BaseBranch); err != nil {
				log.Warn("Failed to return to base branch", "baseBranch", st.BaseBranch, "error", err)
			}
			p.store.Remove(issue.ID)
			log.Info("Issue processing completed", "branch", st.BranchName)
			return success(st.BranchName)
		}
	}
}

// execute は現在のステップのアクションを実行し、結果を分類する
func (p *Pipeline) execute(ctx context.Context, issue types.Issue, st types.ProcessingState) Outcome {
	var err error

	switch st.CurrentStep {
	case types.StepBranchCreation:
		err = p.branches.SwitchToBranch(ctx, st.BranchName, st.BaseBranch)
	case types.StepImplementation:
		err = p.agent.Execute(ctx, p.prompts.Implementation(issue, st.BranchName))
	case types.StepChangeDetection:
		var changed bool
		changed, err = p.branches.CheckForChanges(ctx, st.BaseBranch)
		if err == nil && !changed {
			return Outcome{Kind: OutcomeNoChanges, Err: ErrNoChanges}
		}
	case types.StepCommitPush:
		err = p.agent.Execute(ctx, p.prompts.CommitPush(issue, st.BranchName))
	case types.StepPRCreation:
		err = p.agent.Execute(ctx, p.prompts.PullRequest(issue, st.BranchName, st.BaseBranch))
	default:
		err = fmt.Errorf("unknown step: %s", st.CurrentStep)
	}

	return classify(ctx, err)
}

// classify はアクションのエラーを分類する
// キャンセルによる中断は失敗ではなく一時停止として扱い、ブランチを残す
func classify(ctx context.Context, err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Kind: OutcomeOK}
	case IsRateLimited(err):
		return Outcome{Kind: OutcomeThrottled, Err: err}
	case ctx.Err() != nil:
		return Outcome{Kind: OutcomeInterrupted, Err: err}
	default:
		return Outcome{Kind: OutcomeFailed, Err: err}
	}
}

// cleanup は終端的な失敗の後始末をする
// ブランチ削除はブランチ作成が完了している場合のみ行う
func (p *Pipeline) cleanup(ctx context.Context, st types.ProcessingState, log logger.Logger) {
	cctx := context.WithoutCancel(ctx)

	if err := p.branches.DiscardChanges(cctx); err != nil {
		log.Warn("Failed to discard changes", "error", err)
	}

	if st.HasCompleted(types.StepBranchCreation) {
		if err := p.branches.DeleteBranch(cctx, st.BranchName, st.BaseBranch); err != nil {
			log.Warn("Failed to delete branch", "branch", st.BranchName, "error", err)
		}
	}

	p.store.Remove(st.IssueID)
}
