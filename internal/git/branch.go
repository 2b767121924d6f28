package git

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/types"
)

const maxSlugLength = 40

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// BranchManager は作業ブランチの作成・変更検出・後片付けを行う
type BranchManager struct {
	command  *Command
	repoPath string
	prefix   string
	logger   logger.Logger
}

// NewBranchManager は新しいBranchManagerを作成する
func NewBranchManager(repoPath, prefix string, log logger.Logger) *BranchManager {
	if log == nil {
		log = logger.NewNop()
	}
	if prefix == "" {
		prefix = "issue"
	}
	return &BranchManager{
		command:  NewCommand(log),
		repoPath: repoPath,
		prefix:   prefix,
		logger:   log.WithFields("component", "branch_manager"),
	}
}

// GenerateBranchName は "<prefix>-<number>-<slug>" 形式のブランチ名を返す
func (b *BranchManager) GenerateBranchName(issue types.Issue) string {
	name := b.prefix + "-" + issueIdentifier(issue)
	if slug := Slugify(issue.Title); slug != "" {
		name += "-" + slug
	}
	return name
}

func issueIdentifier(issue types.Issue) string {
	if issue.Number > 0 && issue.Key == "" {
		return strconv.Itoa(issue.Number)
	}
	if issue.Key != "" {
		return Slugify(issue.Key)
	}
	return Slugify(issue.ID)
}

// Slugify はタイトルをブランチ名に使える形に変換する
func Slugify(title string) string {
	slug := nonAlphanumeric.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// SwitchToBranch はbaseからnameを作り直して切り替える
func (b *BranchManager) SwitchToBranch(ctx context.Context, name, base string) error {
	log := b.logger.WithFields("branch", name, "baseBranch", base)

	// リモートが無い場合もあるので失敗は無視する
	if _, err := b.command.Git(ctx, b.repoPath, "fetch", "origin", base); err != nil {
		log.Debug("Failed to fetch base branch, using local ref", "error", err)
	}

	if _, err := b.command.Git(ctx, b.repoPath, "checkout", "-B", name, base); err != nil {
		return fmt.Errorf("failed to switch to branch %s: %w", name, err)
	}

	log.Info("Switched to working branch")
	return nil
}

// CheckForChanges は未コミットの変更、またはbase以降のコミットがあるかを返す
func (b *BranchManager) CheckForChanges(ctx context.Context, base string) (bool, error) {
	status, err := b.command.Git(ctx, b.repoPath, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to get working tree status: %w", err)
	}
	if status != "" {
		return true, nil
	}

	if base == "" {
		return false, nil
	}

	count, err := b.command.Git(ctx, b.repoPath, "rev-list", "--count", base+"..HEAD")
	if err != nil {
		return false, fmt.Errorf("failed to count commits ahead of %s: %w", base, err)
	}
	n, err := strconv.Atoi(count)
	if err != nil {
		return false, fmt.Errorf("unexpected rev-list output %q: %w", count, err)
	}
	return n > 0, nil
}

// DiscardChanges は作業ツリーの変更と未追跡ファイルを破棄する
func (b *BranchManager) DiscardChanges(ctx context.Context) error {
	if _, err := b.command.Git(ctx, b.repoPath, "reset", "--hard"); err != nil {
		return fmt.Errorf("failed to reset working tree: %w", err)
	}
	if _, err := b.command.Git(ctx, b.repoPath, "clean", "-fd"); err != nil {
		return fmt.Errorf("failed to clean untracked files: %w", err)
	}
	b.logger.Info("Discarded working tree changes")
	return nil
}

// ReturnToBase は作業ブランチを残したままbaseに戻る
func (b *BranchManager) ReturnToBase(ctx context.Context, base string) error {
	if _, err := b.command.Git(ctx, b.repoPath, "checkout", base); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", base, err)
	}
	b.logger.Debug("Returned to base branch", "baseBranch", base)
	return nil
}

// DeleteBranch はbaseに戻ってからnameを削除する
func (b *BranchManager) DeleteBranch(ctx context.Context, name, base string) error {
	if _, err := b.command.Git(ctx, b.repoPath, "checkout", base); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", base, err)
	}
	if _, err := b.command.Git(ctx, b.repoPath, "branch", "-D", name); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", name, err)
	}
	b.logger.Info("Deleted working branch", "branch", name, "baseBranch", base)
	return nil
}
