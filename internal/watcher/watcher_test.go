package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/douhashi/kobito/internal/queue"
	"github.com/douhashi/kobito/internal/testutil/mocks"
	"github.com/douhashi/kobito/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	issue1 = types.Issue{ID: "101", Number: 1, Title: "first"}
	issue2 = types.Issue{ID: "102", Number: 2, Title: "second"}
	issue3 = types.Issue{ID: "103", Number: 3, Title: "third"}
)

func newWatcher(t *testing.T, tracker Tracker, q *queue.WorkQueue) *IssueWatcher {
	t.Helper()
	w, err := NewIssueWatcher(tracker, q, nil)
	require.NoError(t, err)
	w.SetRetry(1, time.Millisecond)
	return w
}

func TestIssueWatcher_Poll(t *testing.T) {
	t.Run("正常系: 新しいIssueだけをキューに追加する", func(t *testing.T) {
		tracker := mocks.NewMockTracker()
		tracker.On("FetchAssignedIssues", mock.Anything).Return([]types.Issue{issue1, issue2}, nil).Once()
		tracker.On("FetchAssignedIssues", mock.Anything).Return([]types.Issue{issue1, issue2, issue3}, nil).Once()

		q := queue.New()
		w := newWatcher(t, tracker, q)

		n, err := w.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = w.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		assert.Equal(t, 3, q.Size())
		head, _ := q.Peek()
		assert.Equal(t, issue1.ID, head.ID)
		tracker.AssertExpectations(t)
	})

	t.Run("正常系: 一度消えて再び割り当てられたIssueは再検出する", func(t *testing.T) {
		tracker := mocks.NewMockTracker()
		tracker.On("FetchAssignedIssues", mock.Anything).Return([]types.Issue{issue1}, nil).Once()
		tracker.On("FetchAssignedIssues", mock.Anything).Return([]types.Issue{}, nil).Once()
		tracker.On("FetchAssignedIssues", mock.Anything).Return([]types.Issue{issue1}, nil).Once()

		q := queue.New()
		w := newWatcher(t, tracker, q)

		_, _ = w.Poll(context.Background())
		q.Dequeue()
		_, _ = w.Poll(context.Background())
		n, err := w.Poll(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.True(t, q.Contains(issue1.ID))
	})

	t.Run("正常系: 処理済みのIssueは再検出しない", func(t *testing.T) {
		tracker := mocks.NewMockTracker()
		tracker.On("FetchAssignedIssues", mock.Anything).Return([]types.Issue{issue1}, nil).Once()
		tracker.On("FetchAssignedIssues", mock.Anything).Return([]types.Issue{}, nil).Once()
		tracker.On("FetchAssignedIssues", mock.Anything).Return([]types.Issue{issue1}, nil).Once()
		tracker.On("MarkIssueAsProcessed", mock.Anything, issue1.ID).Return(errors.New("label api failed"))

		q := queue.New()
		w := newWatcher(t, tracker, q)

		_, _ = w.Poll(context.Background())
		q.Dequeue()
		err := w.MarkIssueAsProcessed(context.Background(), issue1.ID)
		assert.Error(t, err)
		assert.True(t, w.IsSuppressed(issue1.ID))

		_, _ = w.Poll(context.Background())
		n, err := w.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.True(t, q.IsEmpty())
	})

	t.Run("正常系: キューに残っているIssueは重複しない", func(t *testing.T) {
		tracker := mocks.NewMockTracker()
		tracker.On("FetchAssignedIssues", mock.Anything).Return([]types.Issue{issue1, issue1}, nil)

		q := queue.New()
		w := newWatcher(t, tracker, q)

		n, err := w.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, q.Size())
	})

	t.Run("異常系: 取得に失敗した場合はエラーを返す", func(t *testing.T) {
		tracker := mocks.NewMockTracker()
		tracker.On("FetchAssignedIssues", mock.Anything).Return(nil, errors.New("unauthorized"))

		q := queue.New()
		w := newWatcher(t, tracker, q)

		n, err := w.Poll(context.Background())
		assert.EqualError(t, err, "unauthorized")
		assert.Equal(t, 0, n)
		assert.True(t, q.IsEmpty())
	})

	t.Run("正常系: 一時的なエラーはリトライする", func(t *testing.T) {
		tracker := mocks.NewMockTracker()
		tracker.On("FetchAssignedIssues", mock.Anything).Return(nil, errors.New("dial tcp: connection refused")).Once()
		tracker.On("FetchAssignedIssues", mock.Anything).Return([]types.Issue{issue1}, nil).Once()

		q := queue.New()
		w := newWatcher(t, tracker, q)
		w.SetRetry(3, time.Millisecond)

		n, err := w.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		tracker.AssertExpectations(t)
	})
}

func TestIssueWatcher_StartStop(t *testing.T) {
	tracker := mocks.NewMockTracker()
	tracker.On("FetchAssignedIssues", mock.Anything).Return([]types.Issue{issue1}, nil)

	q := queue.New()
	w := newWatcher(t, tracker, q)
	assert.False(t, w.IsPolling())

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsPolling())

	assert.Eventually(t, func() bool { return q.Contains(issue1.ID) }, 2*time.Second, 10*time.Millisecond)

	w.Stop()
	w.Stop()
	assert.False(t, w.IsPolling())
}

func TestIssueWatcher_StartWithCanceledContext(t *testing.T) {
	w := newWatcher(t, mocks.NewMockTracker(), queue.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, w.IsPolling())
}
