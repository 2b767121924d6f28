package pipeline

import (
	"fmt"

	"github.com/douhashi/kobito/internal/types"
)

// OutcomeKind はステップのアクションを実行した結果の分類
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeThrottled
	OutcomeInterrupted
	OutcomeNoChanges
	OutcomeFailed
)

// Outcome はステップのアクション結果
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// TransitionKind は状態遷移の種類
type TransitionKind int

const (
	// TransitionAdvance は現在のステップを完了して次へ進む
	TransitionAdvance TransitionKind = iota
	// TransitionPause は現在のステップのまま中断する
	TransitionPause
	// TransitionAbort は終端的な失敗で打ち切る
	TransitionAbort
	// TransitionDone は全ステップが完了している
	TransitionDone
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionAdvance:
		return "advance"
	case TransitionPause:
		return "pause"
	case TransitionAbort:
		return "abort"
	case TransitionDone:
		return "done"
	default:
		return "unknown"
	}
}

// Transition は Step が返す遷移
type Transition struct {
	Kind TransitionKind
	// Completed はAdvanceで完了したステップ
	Completed types.ProcessingStep
	Reason    string
}

// Step は現在のステップのアクション結果から次の状態と遷移を求める純粋関数
//
// 前進は常に「現在のステップを完了済みに追加して次のステップへ」の1通りだけなので、
// 完了済みのステップが再び現在のステップになることはない。
func Step(st types.ProcessingState, out Outcome) (types.ProcessingState, Transition) {
	next := st.Clone()

	if st.CurrentStep == types.StepCompleted {
		return next, Transition{Kind: TransitionDone}
	}

	switch out.Kind {
	case OutcomeOK:
		next.CompletedSteps = append(next.CompletedSteps, st.CurrentStep)
		next.CurrentStep = st.CurrentStep.Next()
		return next, Transition{Kind: TransitionAdvance, Completed: st.CurrentStep}

	case OutcomeThrottled:
		next.RetryCount++
		return next, Transition{
			Kind:   TransitionPause,
			Reason: fmt.Sprintf("rate limited at step '%s'", st.CurrentStep),
		}

	case OutcomeInterrupted:
		return next, Transition{
			Kind:   TransitionPause,
			Reason: fmt.Sprintf("interrupted at step '%s'", st.CurrentStep),
		}

	case OutcomeNoChanges:
		return next, Transition{Kind: TransitionAbort, Reason: ErrNoChanges.Error()}

	default:
		reason := fmt.Sprintf("step '%s' failed", st.CurrentStep)
		if out.Err != nil {
			reason = fmt.Sprintf("%s: %v", reason, out.Err)
		}
		return next, Transition{Kind: TransitionAbort, Reason: reason}
	}
}
