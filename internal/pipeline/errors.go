package pipeline

import "errors"

var (
	// ErrRateLimited はエージェントがスロットリングされたことを表す
	ErrRateLimited = errors.New("agent rate limited")
	// ErrNoChanges は実装ステップが作業ツリーに変更を残さなかったことを表す
	ErrNoChanges = errors.New("no changes produced")
	// ErrNoState は再開しようとしたIssueの処理状態が存在しないことを表す
	ErrNoState = errors.New("no processing state found")
)

// rateLimiter はスロットリングを自己申告するエラー
type rateLimiter interface {
	RateLimited() bool
}

// IsRateLimited はエラーがスロットリングによるものかを判定する
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var rl rateLimiter
	return errors.As(err, &rl) && rl.RateLimited()
}
