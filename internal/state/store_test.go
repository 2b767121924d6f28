package state

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "state"), logger.NewNop(), WithClock(func() time.Time { return fixedNow }))
}

func TestStore_CreateInitialAndLoad(t *testing.T) {
	store := newTestStore(t)

	created := store.CreateInitial("42", "issue-100-fix-login", "main")
	assert.Equal(t, types.StepBranchCreation, created.CurrentStep)
	assert.Empty(t, created.CompletedSteps)
	assert.Equal(t, 0, created.RetryCount)
	assert.Equal(t, fixedNow, created.LastUpdated)

	loaded, ok := store.Load("42")
	require.True(t, ok)
	assert.Equal(t, created, loaded)
}

func TestStore_Load(t *testing.T) {
	t.Run("正常系: 存在しない場合はfalse", func(t *testing.T) {
		store := newTestStore(t)
		_, ok := store.Load("missing")
		assert.False(t, ok)
	})

	t.Run("異常系: 壊れたJSONは状態なしとして扱う", func(t *testing.T) {
		core, recorded := observer.New(zapcore.WarnLevel)
		store := NewStore(t.TempDir(), logger.NewWithCore(core))
		require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "7.json"), []byte("{not json"), 0600))

		_, ok := store.Load("7")
		assert.False(t, ok)
		assert.Equal(t, 1, recorded.FilterMessage("Processing state persistence failed").Len())
	})

	t.Run("異常系: 不変条件を満たさない状態は状態なしとして扱う", func(t *testing.T) {
		store := newTestStore(t)
		broken := `{"issueId":"7","currentStep":"pr_creation","completedSteps":["branch_creation"],"retryCount":0}`
		require.NoError(t, os.MkdirAll(store.Dir(), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "7.json"), []byte(broken), 0600))

		_, ok := store.Load("7")
		assert.False(t, ok)
	})
}

func TestStore_Advance(t *testing.T) {
	store := newTestStore(t)
	store.CreateInitial("1", "issue-1", "main")

	store.Advance("1", types.StepImplementation, types.StepBranchCreation)
	store.Advance("1", types.StepChangeDetection, types.StepImplementation)
	// 同じ完了ステップを重ねて渡しても重複しない
	store.Advance("1", types.StepChangeDetection, types.StepImplementation)

	st, ok := store.Load("1")
	require.True(t, ok)
	assert.Equal(t, types.StepChangeDetection, st.CurrentStep)
	assert.Equal(t, []types.ProcessingStep{types.StepBranchCreation, types.StepImplementation}, st.CompletedSteps)
}

func TestStore_Advance_MissingStateIsNoop(t *testing.T) {
	store := newTestStore(t)
	store.Advance("nope", types.StepImplementation, types.StepBranchCreation)

	assert.Empty(t, store.ListPending())
}

func TestStore_IncrementRetry(t *testing.T) {
	store := newTestStore(t)
	store.CreateInitial("1", "issue-1", "main")

	for i := 0; i < 3; i++ {
		store.IncrementRetry("1")
	}

	st, ok := store.Load("1")
	require.True(t, ok)
	assert.Equal(t, 3, st.RetryCount)
	assert.Equal(t, types.StepBranchCreation, st.CurrentStep)
}

func TestStore_Remove(t *testing.T) {
	store := newTestStore(t)
	store.CreateInitial("1", "issue-1", "main")

	store.Remove("1")
	_, ok := store.Load("1")
	assert.False(t, ok)

	assert.NotPanics(t, func() { store.Remove("1") })
}

func TestStore_ListPending(t *testing.T) {
	t.Run("正常系: ディレクトリが存在しない場合は空", func(t *testing.T) {
		store := newTestStore(t)
		assert.Equal(t, []string{}, store.ListPending())
	})

	t.Run("正常系: 保存済みIDをソートして返す", func(t *testing.T) {
		store := newTestStore(t)
		store.CreateInitial("20", "issue-20", "main")
		store.CreateInitial("3", "issue-3", "main")
		require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "README.txt"), []byte("x"), 0600))

		assert.Equal(t, []string{"20", "3"}, store.ListPending())
	})
}

func TestStore_SaveFailureIsSwallowed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file-as-directory trick is unix specific")
	}

	parent := t.TempDir()
	blocker := filepath.Join(parent, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	store := NewStore(filepath.Join(blocker, "state"), logger.NewNop())

	var warnings []string
	store.SetWarningHandler(func(op, issueID string, err error) {
		require.Error(t, err)
		warnings = append(warnings, op+":"+issueID)
	})

	assert.NotPanics(t, func() {
		store.CreateInitial("1", "issue-1", "main")
	})
	require.NotEmpty(t, warnings)
	assert.Equal(t, "save:1", warnings[0])

	_, ok := store.Load("1")
	assert.False(t, ok)
}

func TestStore_WarningHandlerReceivesCorruption(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(store.Dir(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "9.json"), []byte("garbage"), 0600))

	var got error
	store.SetWarningHandler(func(op, issueID string, err error) { got = err })

	_, ok := store.Load("9")
	assert.False(t, ok)
	assert.ErrorContains(t, got, "corrupted state file")
}
