package ratelimit

import (
	"testing"
	"time"

	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/pipeline"
	"github.com/douhashi/kobito/internal/types"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func throttledResult(step types.ProcessingStep, retry int) pipeline.Result {
	st := types.ProcessingState{IssueID: "1", CurrentStep: step, RetryCount: retry}
	return pipeline.Result{Kind: pipeline.ResultNeedsResume, State: &st, Reason: "rate limited"}
}

func TestPolicy_IsRateLimited(t *testing.T) {
	p := NewPolicy(nil)

	assert.True(t, p.IsRateLimited(throttledResult(types.StepImplementation, 1)))
	assert.False(t, p.IsRateLimited(pipeline.Result{Kind: pipeline.ResultSuccess}))
	assert.False(t, p.IsRateLimited(pipeline.Result{Kind: pipeline.ResultFailure, Reason: "boom"}))
}

func TestPolicy_Describe(t *testing.T) {
	p := NewPolicy(nil)

	assert.Equal(t, "Rate limited at step 'commit_push' (retry 3)", p.Describe(throttledResult(types.StepCommitPush, 3)))
	assert.Equal(t, "No rate limit detected", p.Describe(pipeline.Result{Kind: pipeline.ResultSuccess}))
	assert.Equal(t, "No rate limit detected", p.Describe(pipeline.Result{Kind: pipeline.ResultFailure}))
}

func TestPolicy_HandleRateLimit(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	p := NewPolicy(logger.NewWithCore(core))

	keep := p.HandleRateLimit(types.Issue{ID: "1", Number: 100}, throttledResult(types.StepPRCreation, 2))

	assert.False(t, keep)
	entries := recorded.FilterMessage("Issue kept in queue for resume").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "pr_creation", fields["step"])
		assert.EqualValues(t, 2, fields["retryCount"])
		assert.EqualValues(t, 100, fields["issueNumber"])
	}
}

func TestPolicy_Cooldown(t *testing.T) {
	p := NewPolicy(nil)
	p.Jitter = false

	assert.Equal(t, time.Duration(0), p.Cooldown(0))
	assert.Equal(t, time.Minute, p.Cooldown(1))
	assert.Equal(t, 2*time.Minute, p.Cooldown(2))
	assert.Equal(t, 8*time.Minute, p.Cooldown(4))
	assert.Equal(t, 30*time.Minute, p.Cooldown(10))

	p.Jitter = true
	for i := 0; i < 20; i++ {
		d := p.Cooldown(1)
		assert.GreaterOrEqual(t, d, time.Minute)
		assert.LessOrEqual(t, d, time.Minute+15*time.Second)
	}
}
