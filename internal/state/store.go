package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/paths"
	"github.com/douhashi/kobito/internal/types"
)

const stateFileExt = ".json"

// WarningHandler は永続化の失敗を通知するコールバック
// op は "save" / "load" / "remove" / "list" のいずれか
type WarningHandler func(op, issueID string, err error)

// Store はIssueごとの処理状態をJSONファイルとして永続化する
//
// 全ての操作はベストエフォートで、永続化に失敗してもエラーを返さない。
// 読み込めない・壊れたファイルは「状態なし」として扱い、そのIssueは最初から処理し直される。
type Store struct {
	dir    string
	logger logger.Logger
	now    func() time.Time

	mu        sync.Mutex
	onWarning WarningHandler
}

// Option はStoreの設定オプション
type Option func(*Store)

// WithClock はlastUpdatedの打刻に使う時計を差し替える
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore は新しいStoreを作成する。ディレクトリは最初の保存時に作成される
func NewStore(dir string, log logger.Logger, opts ...Option) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Store{
		dir:    dir,
		logger: log.WithFields("component", "state_store", "dir", dir),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir は状態ファイルを格納するディレクトリを返す
func (s *Store) Dir() string {
	return s.dir
}

// SetWarningHandler は永続化失敗の通知先を設定する
func (s *Store) SetWarningHandler(h WarningHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWarning = h
}

// Save は状態をIssue IDで上書き保存し、LastUpdatedを打刻する
func (s *Store) Save(st types.ProcessingState) {
	s.save(st)
}

func (s *Store) save(st types.ProcessingState) types.ProcessingState {
	st.LastUpdated = s.now().UTC()
	if st.CompletedSteps == nil {
		st.CompletedSteps = []types.ProcessingStep{}
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		s.warn("save", st.IssueID, fmt.Errorf("failed to marshal state: %w", err))
		return st
	}

	if err := s.writeFile(s.path(st.IssueID), data); err != nil {
		s.warn("save", st.IssueID, err)
		return st
	}

	s.logger.Debug("Processing state saved",
		"issueId", st.IssueID,
		"currentStep", st.CurrentStep,
		"completedSteps", st.CompletedSteps,
		"retryCount", st.RetryCount,
	)
	return st
}

// writeFile は一時ファイルに書き込んでからリネームすることで、途中で落ちても壊れたファイルを残さない
func (s *Store) writeFile(path string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

// Load は保存された状態を読み込む
// ファイルが存在しない場合、または解析・検証できない場合は false を返す
func (s *Store) Load(issueID string) (types.ProcessingState, bool) {
	data, err := os.ReadFile(s.path(issueID))
	if err != nil {
		if !os.IsNotExist(err) {
			s.warn("load", issueID, err)
		}
		return types.ProcessingState{}, false
	}

	var st types.ProcessingState
	if err := json.Unmarshal(data, &st); err != nil {
		s.warn("load", issueID, fmt.Errorf("corrupted state file: %w", err))
		return types.ProcessingState{}, false
	}
	if err := st.Validate(); err != nil {
		s.warn("load", issueID, fmt.Errorf("invalid state file: %w", err))
		return types.ProcessingState{}, false
	}
	if st.IssueID != issueID {
		s.warn("load", issueID, fmt.Errorf("state file belongs to issue %q", st.IssueID))
		return types.ProcessingState{}, false
	}

	return st, true
}

// CreateInitial はbranch_creationから始まる初期状態を作成して保存する
func (s *Store) CreateInitial(issueID, branchName, baseBranch string) types.ProcessingState {
	return s.save(types.NewProcessingState(issueID, branchName, baseBranch))
}

// Advance は状態を読み込み、完了ステップを追加して次のステップへ進めて保存する
// justCompleted が空の場合は完了ステップを追加しない
func (s *Store) Advance(issueID string, newStep, justCompleted types.ProcessingStep) {
	st, ok := s.Load(issueID)
	if !ok {
		s.logger.Warn("Cannot advance missing processing state", "issueId", issueID, "step", newStep)
		return
	}

	if justCompleted != "" && !st.HasCompleted(justCompleted) {
		st.CompletedSteps = append(st.CompletedSteps, justCompleted)
	}
	st.CurrentStep = newStep
	s.Save(st)
}

// IncrementRetry はリトライ回数を1増やして保存する
func (s *Store) IncrementRetry(issueID string) {
	st, ok := s.Load(issueID)
	if !ok {
		s.logger.Warn("Cannot increment retry of missing processing state", "issueId", issueID)
		return
	}
	st.RetryCount++
	s.Save(st)
}

// Remove は状態ファイルを削除する。存在しない場合は何もしない
func (s *Store) Remove(issueID string) {
	if err := os.Remove(s.path(issueID)); err != nil && !os.IsNotExist(err) {
		s.warn("remove", issueID, err)
		return
	}
	s.logger.Debug("Processing state removed", "issueId", issueID)
}

// ListPending は保存されている全ての状態のIssue IDを返す
// ディレクトリにアクセスできない場合は空のスライスを返す
func (s *Store) ListPending() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.warn("list", "", err)
		}
		return []string{}
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, stateFileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, stateFileExt))
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) path(issueID string) string {
	return filepath.Join(s.dir, paths.SanitizeIdentifier(issueID)+stateFileExt)
}

func (s *Store) warn(op, issueID string, err error) {
	s.logger.Error("Processing state persistence failed",
		"op", op,
		"issueId", issueID,
		"error", err,
	)

	s.mu.Lock()
	h := s.onWarning
	s.mu.Unlock()
	if h != nil {
		h(op, issueID, err)
	}
}
