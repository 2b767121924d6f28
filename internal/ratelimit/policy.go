package ratelimit

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/pipeline"
	"github.com/douhashi/kobito/internal/types"
)

// Policy はパイプラインの結果を解釈し、スロットリング時の扱いを決める
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool

	logger logger.Logger
}

// NewPolicy はデフォルトのクールダウン設定でPolicyを作成する
func NewPolicy(log logger.Logger) *Policy {
	if log == nil {
		log = logger.NewNop()
	}
	return &Policy{
		InitialDelay: time.Minute,
		MaxDelay:     30 * time.Minute,
		Multiplier:   2.0,
		Jitter:       true,
		logger:       log.WithFields("component", "rate_limit_policy"),
	}
}

// IsRateLimited は結果が再開待ちかを返す
func (p *Policy) IsRateLimited(result pipeline.Result) bool {
	return result.NeedsResume()
}

// HandleRateLimit はスロットリングの文脈をログに残す
// Issueはキューの先頭に残すため、常にfalse（キューから削除しない）を返す
func (p *Policy) HandleRateLimit(issue types.Issue, result pipeline.Result) bool {
	fields := []interface{}{
		"issueId", issue.ID,
		"issueNumber", issue.Number,
		"reason", result.Reason,
	}
	if result.State != nil {
		fields = append(fields,
			"step", result.State.CurrentStep,
			"retryCount", result.State.RetryCount,
			"cooldown", p.Cooldown(result.State.RetryCount),
		)
	}
	p.logger.Warn("Issue kept in queue for resume", fields...)
	return false
}

// Describe は結果を人が読める形で返す
func (p *Policy) Describe(result pipeline.Result) string {
	if !p.IsRateLimited(result) || result.State == nil {
		return "No rate limit detected"
	}
	return fmt.Sprintf("Rate limited at step '%s' (retry %d)", result.State.CurrentStep, result.State.RetryCount)
}

// Cooldown はretryCount回スロットリングされた後、次に試行するまでの待ち時間を返す
func (p *Policy) Cooldown(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}

	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(retryCount-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	// 最大25%のジッターを加える
	if p.Jitter && delay > 0 {
		delay += rand.Float64() * 0.25 * delay
	}

	return time.Duration(delay)
}
