package types

import (
	"fmt"
	"time"
)

// ProcessingStep はパイプラインの処理ステップを表す型
type ProcessingStep string

const (
	StepBranchCreation  ProcessingStep = "branch_creation"
	StepImplementation  ProcessingStep = "implementation"
	StepChangeDetection ProcessingStep = "change_detection"
	StepCommitPush      ProcessingStep = "commit_push"
	StepPRCreation      ProcessingStep = "pr_creation"
	StepCompleted       ProcessingStep = "completed"
)

var stepOrder = []ProcessingStep{
	StepBranchCreation,
	StepImplementation,
	StepChangeDetection,
	StepCommitPush,
	StepPRCreation,
	StepCompleted,
}

// Steps は全ステップを実行順に返す
func Steps() []ProcessingStep {
	steps := make([]ProcessingStep, len(stepOrder))
	copy(steps, stepOrder)
	return steps
}

// Index はステップの順序を返す。未知のステップは-1
func (s ProcessingStep) Index() int {
	for i, step := range stepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// IsValid は既知のステップかを判定する
func (s ProcessingStep) IsValid() bool {
	return s.Index() >= 0
}

// Next は次のステップを返す。completedの次はcompleted
func (s ProcessingStep) Next() ProcessingStep {
	i := s.Index()
	if i < 0 || i >= len(stepOrder)-1 {
		return StepCompleted
	}
	return stepOrder[i+1]
}

func (s ProcessingStep) String() string {
	return string(s)
}

// ProcessingState は処理中Issueの永続化される進捗
type ProcessingState struct {
	IssueID        string           `json:"issueId"`
	BranchName     string           `json:"branchName"`
	BaseBranch     string           `json:"baseBranch"`
	CurrentStep    ProcessingStep   `json:"currentStep"`
	CompletedSteps []ProcessingStep `json:"completedSteps"`
	RetryCount     int              `json:"retryCount"`
	LastUpdated    time.Time        `json:"lastUpdated"`
}

// NewProcessingState はbranch_creationから始まる初期状態を作成する
func NewProcessingState(issueID, branchName, baseBranch string) ProcessingState {
	return ProcessingState{
		IssueID:        issueID,
		BranchName:     branchName,
		BaseBranch:     baseBranch,
		CurrentStep:    StepBranchCreation,
		CompletedSteps: []ProcessingStep{},
	}
}

// HasCompleted は指定ステップが完了済みかを返す
func (s ProcessingState) HasCompleted(step ProcessingStep) bool {
	for _, done := range s.CompletedSteps {
		if done == step {
			return true
		}
	}
	return false
}

// Clone はスライスを共有しないコピーを返す
func (s ProcessingState) Clone() ProcessingState {
	c := s
	c.CompletedSteps = make([]ProcessingStep, len(s.CompletedSteps))
	copy(c.CompletedSteps, s.CompletedSteps)
	return c
}

// Validate は完了ステップが実行順の厳密な接頭辞であり、
// 現在ステップがその直後であることを検証する
func (s ProcessingState) Validate() error {
	if s.IssueID == "" {
		return fmt.Errorf("issue id is empty")
	}
	if !s.CurrentStep.IsValid() {
		return fmt.Errorf("unknown current step: %q", s.CurrentStep)
	}
	if len(s.CompletedSteps) >= len(stepOrder) {
		return fmt.Errorf("too many completed steps: %d", len(s.CompletedSteps))
	}
	for i, step := range s.CompletedSteps {
		if step != stepOrder[i] {
			return fmt.Errorf("completed steps are not an ordered prefix: %v", s.CompletedSteps)
		}
	}
	if want := stepOrder[len(s.CompletedSteps)]; s.CurrentStep != want {
		return fmt.Errorf("current step %q does not follow completed steps (want %q)", s.CurrentStep, want)
	}
	if s.RetryCount < 0 {
		return fmt.Errorf("negative retry count: %d", s.RetryCount)
	}
	return nil
}
