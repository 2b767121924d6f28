package cmd

import (
	"testing"

	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/pipeline"
	"github.com/douhashi/kobito/internal/state"
	"github.com/douhashi/kobito/internal/testutil/mocks"
	"github.com/douhashi/kobito/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestResumeCmd(t *testing.T) {
	seedPaused := func(t *testing.T, env *testEnv) *state.Store {
		t.Helper()
		store := state.NewStore(env.stateDir, logger.NewNop())
		store.CreateInitial("42", "issue-42-fix-login", "main")
		store.Advance("42", types.StepImplementation, types.StepBranchCreation)
		store.Advance("42", types.StepChangeDetection, types.StepImplementation)
		store.Advance("42", types.StepCommitPush, types.StepChangeDetection)
		store.IncrementRetry("42")
		return store
	}

	t.Run("正常系: 中断したステップから再開して完了する", func(t *testing.T) {
		env := setupTestEnv(t)
		store := seedPaused(t, env)

		tracker := mocks.NewMockTracker()
		tracker.On("GetIssue", mock.Anything, "42").Return(issue42, nil)
		tracker.On("MarkIssueAsProcessed", mock.Anything, "42").Return(nil)
		agent := mocks.NewMockAgent()
		agent.On("Execute", mock.Anything, mocks.CommitPushPrompt).Return(nil).Once()
		agent.On("Execute", mock.Anything, mocks.PullRequestPrompt).Return(nil).Once()
		stubOrchestrator(t, tracker, agent)

		stdout, _, err := env.run(t, "resume", "42")
		require.NoError(t, err)
		assert.Contains(t, stdout, "success: completed (branch: issue-42-fix-login)")
		agent.AssertNotCalled(t, "Execute", mock.Anything, mocks.ImplementationPrompt)
		tracker.AssertCalled(t, "MarkIssueAsProcessed", mock.Anything, "42")
		assert.Empty(t, store.ListPending())
	})

	t.Run("正常系: 再びスロットリングされたら状態を残す", func(t *testing.T) {
		env := setupTestEnv(t)
		store := seedPaused(t, env)

		tracker := mocks.NewMockTracker()
		tracker.On("GetIssue", mock.Anything, "42").Return(issue42, nil)
		agent := mocks.NewMockAgent()
		agent.On("Execute", mock.Anything, mocks.CommitPushPrompt).Return(pipeline.ErrRateLimited)
		stubOrchestrator(t, tracker, agent)

		stdout, _, err := env.run(t, "resume", "42")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Rate limited at step 'commit_push' (retry 2)")
		tracker.AssertNotCalled(t, "MarkIssueAsProcessed", mock.Anything, mock.Anything)
		assert.Equal(t, []string{"42"}, store.ListPending())
	})

	t.Run("異常系: 保存された状態がない", func(t *testing.T) {
		env := setupTestEnv(t)
		tracker := mocks.NewMockTracker()
		stubOrchestrator(t, tracker, mocks.NewMockAgent())

		_, _, err := env.run(t, "resume", "42")
		assert.ErrorContains(t, err, "保存された処理状態がありません")
		tracker.AssertNotCalled(t, "GetIssue", mock.Anything, mock.Anything)
	})

	t.Run("異常系: 引数がない", func(t *testing.T) {
		env := setupTestEnv(t)

		_, _, err := env.run(t, "resume")
		assert.Error(t, err)
	})
}
