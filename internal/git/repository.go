package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/douhashi/kobito/internal/logger"
)

var (
	ErrNotGitRepository = errors.New("not a git repository")

	httpsPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	sshPattern   = regexp.MustCompile(`^(?:ssh://)?git@github\.com[:/]([^/]+)/([^/]+?)(?:\.git)?$`)
)

// GitHubRepoInfo はGitHubリポジトリのowner/repo
type GitHubRepoInfo struct {
	Owner string
	Repo  string
}

// ParseGitHubURL はGitHubのURLからowner/repo情報を抽出する
// 以下の形式に対応:
// - https://github.com/owner/repo(.git)
// - git@github.com:owner/repo(.git)
// - ssh://git@github.com/owner/repo(.git)
func ParseGitHubURL(url string) (*GitHubRepoInfo, error) {
	url = strings.TrimSpace(url)
	for _, p := range []*regexp.Regexp{httpsPattern, sshPattern} {
		if matches := p.FindStringSubmatch(url); len(matches) == 3 {
			return &GitHubRepoInfo{
				Owner: matches[1],
				Repo:  strings.TrimSuffix(matches[2], ".git"),
			}, nil
		}
	}
	return nil, fmt.Errorf("invalid GitHub URL format: %s", url)
}

// Repository はローカルのgitリポジトリへの問い合わせを行う
type Repository struct {
	command *Command
	path    string
}

// NewRepository は新しいRepositoryを作成する
func NewRepository(path string, log logger.Logger) *Repository {
	return &Repository{command: NewCommand(log), path: path}
}

// Path はリポジトリのルートを返す
func (r *Repository) Path() string { return r.path }

// CurrentBranch は現在チェックアウトしているブランチ名を返す
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	branch, err := r.command.Git(ctx, r.path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return branch, nil
}

// RemoteDefaultBranch はrefs/remotes/origin/HEADが指すブランチ名を返す
// cloneしたリポジトリか、git remote set-head を実行済みの場合に設定されている
func (r *Repository) RemoteDefaultBranch(ctx context.Context) (string, error) {
	ref, err := r.command.Git(ctx, r.path, "symbolic-ref", "--quiet", "--short", "refs/remotes/origin/HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve origin/HEAD: %w", err)
	}
	branch := strings.TrimPrefix(ref, "origin/")
	if branch == "" || branch == ref {
		return "", fmt.Errorf("unexpected origin/HEAD reference: %q", ref)
	}
	return branch, nil
}

// LocalDefaultBranch はローカルに存在するmainまたはmasterを返す
func (r *Repository) LocalDefaultBranch(ctx context.Context) (string, error) {
	for _, name := range []string{"main", "master"} {
		if _, err := r.command.Git(ctx, r.path, "rev-parse", "--verify", "--quiet", "refs/heads/"+name); err == nil {
			return name, nil
		}
	}
	return "", errors.New("neither main nor master exists")
}

// RemoteURL は指定したリモートのURLを返す
func (r *Repository) RemoteURL(ctx context.Context, remote string) (string, error) {
	url, err := r.command.Git(ctx, r.path, "remote", "get-url", remote)
	if err != nil {
		return "", fmt.Errorf("failed to get url of remote %s: %w", remote, err)
	}
	return url, nil
}

// GitHubRepoInfo はoriginのURLからowner/repoを取得する
func (r *Repository) GitHubRepoInfo(ctx context.Context) (*GitHubRepoInfo, error) {
	url, err := r.RemoteURL(ctx, "origin")
	if err != nil {
		return nil, err
	}
	return ParseGitHubURL(url)
}

// FindRoot はstartPathから親を辿って.gitのあるディレクトリを返す
func FindRoot(startPath string) (string, error) {
	path, err := filepath.Abs(startPath)
	if err != nil {
		return "", err
	}
	for {
		// worktreeでは.gitがファイルになる
		if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
			return path, nil
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", ErrNotGitRepository
		}
		path = parent
	}
}
