package pipeline

import "github.com/douhashi/kobito/internal/types"

// ResultKind はパイプライン実行結果の種類
type ResultKind int

const (
	// ResultSuccess はPR作成まで完了したことを表す
	ResultSuccess ResultKind = iota
	// ResultNeedsResume は状態を保存して中断したことを表す。Issueはキューに残す
	ResultNeedsResume
	// ResultFailure は終端的な失敗を表す。ブランチと状態は片付け済み
	ResultFailure
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultNeedsResume:
		return "needs_resume"
	case ResultFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result はProcessの結果
type Result struct {
	Kind       ResultKind
	BranchName string
	// State はNeedsResumeのときに保存済みの状態
	State  *types.ProcessingState
	Reason string
	Err    error
}

// IsSuccess は成功かを返す
func (r Result) IsSuccess() bool { return r.Kind == ResultSuccess }

// NeedsResume は再開が必要かを返す
func (r Result) NeedsResume() bool { return r.Kind == ResultNeedsResume }

// IsFailure は終端的な失敗かを返す
func (r Result) IsFailure() bool { return r.Kind == ResultFailure }

func success(branch string) Result {
	return Result{Kind: ResultSuccess, BranchName: branch}
}

func needsResume(st types.ProcessingState, reason string, err error) Result {
	return Result{Kind: ResultNeedsResume, BranchName: st.BranchName, State: &st, Reason: reason, Err: err}
}

func failure(reason string, err error) Result {
	return Result{Kind: ResultFailure, Reason: reason, Err: err}
}
