package queue

import (
	"sync"

	"github.com/douhashi/kobito/internal/types"
)

// Status はキューの状態のスナップショット
type Status struct {
	Size       int
	Processing bool
	NextIssue  *types.Issue
}

// WorkQueue は到着順に処理されるIssueのキュー
//
// 同じIssue IDは1件しか保持しない。処理中フラグは単一ワーカーの排他に使う。
type WorkQueue struct {
	mu         sync.Mutex
	items      []types.Issue
	index      map[string]struct{}
	processing bool
}

// New は空のWorkQueueを作成する
func New() *WorkQueue {
	return &WorkQueue{
		index: make(map[string]struct{}),
	}
}

// Enqueue はまだキューにないIssueを到着順に追加し、追加した件数を返す
func (q *WorkQueue) Enqueue(issues []types.Issue) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	added := 0
	for _, issue := range issues {
		if _, exists := q.index[issue.ID]; exists {
			continue
		}
		q.index[issue.ID] = struct{}{}
		q.items = append(q.items, issue)
		added++
	}
	return added
}

// Peek は先頭のIssueを取り出さずに返す
func (q *WorkQueue) Peek() (types.Issue, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return types.Issue{}, false
	}
	return q.items[0], true
}

// Dequeue は先頭のIssueを取り出す
func (q *WorkQueue) Dequeue() (types.Issue, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return types.Issue{}, false
	}
	issue := q.items[0]
	q.items[0] = types.Issue{}
	q.items = q.items[1:]
	delete(q.index, issue.ID)
	return issue, true
}

// Remove は指定IDのIssueをキューから削除する
func (q *WorkQueue) Remove(issueID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.index[issueID]; !exists {
		return false
	}
	for i, issue := range q.items {
		if issue.ID == issueID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	delete(q.index, issueID)
	return true
}

// Contains は指定IDのIssueがキューにあるかを返す
func (q *WorkQueue) Contains(issueID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, exists := q.index[issueID]
	return exists
}

// IsEmpty はキューが空かを返す
func (q *WorkQueue) IsEmpty() bool {
	return q.Size() == 0
}

// Size はキュー内のIssue数を返す
func (q *WorkQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// SetProcessing は処理中フラグを設定する
func (q *WorkQueue) SetProcessing(processing bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.processing = processing
}

// TryStartProcessing は処理中でなければフラグを立ててtrueを返す
func (q *WorkQueue) TryStartProcessing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.processing {
		return false
	}
	q.processing = true
	return true
}

// IsProcessing は処理中フラグを返す
func (q *WorkQueue) IsProcessing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.processing
}

// Status はキューの状態を返す
func (q *WorkQueue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	status := Status{
		Size:       len(q.items),
		Processing: q.processing,
	}
	if len(q.items) > 0 {
		next := q.items[0]
		status.NextIssue = &next
	}
	return status
}
