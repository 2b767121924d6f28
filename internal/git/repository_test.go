package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/testutil/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGitHubURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    *GitHubRepoInfo
		wantErr bool
	}{
		{name: "HTTPS URL with .git", url: "https://github.com/douhashi/kobito.git", want: &GitHubRepoInfo{Owner: "douhashi", Repo: "kobito"}},
		{name: "HTTPS URL without .git", url: "https://github.com/douhashi/kobito", want: &GitHubRepoInfo{Owner: "douhashi", Repo: "kobito"}},
		{name: "SSH URL with .git", url: "git@github.com:douhashi/kobito.git", want: &GitHubRepoInfo{Owner: "douhashi", Repo: "kobito"}},
		{name: "SSH URL without .git", url: "git@github.com:douhashi/kobito", want: &GitHubRepoInfo{Owner: "douhashi", Repo: "kobito"}},
		{name: "SSH scheme URL", url: "ssh://git@github.com/douhashi/kobito.git", want: &GitHubRepoInfo{Owner: "douhashi", Repo: "kobito"}},
		{name: "Trailing newline", url: "https://github.com/douhashi/kobito.git\n", want: &GitHubRepoInfo{Owner: "douhashi", Repo: "kobito"}},
		{name: "GitLab URL", url: "https://gitlab.com/douhashi/kobito.git", wantErr: true},
		{name: "Empty", url: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGitHubURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	root, err := FindRoot(nested)
	require.NoError(t, err)

	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(root)
	assert.Equal(t, want, got)
}

func TestRepository_RemoteInfo(t *testing.T) {
	dir := helpers.InitGitRepo(t)
	ctx := context.Background()
	repo := NewRepository(dir, logger.NewNop())

	_, err := repo.GitHubRepoInfo(ctx)
	assert.Error(t, err)

	helpers.SetGitRemote(t, dir, "origin", "git@github.com:douhashi/kobito.git")

	info, err := repo.GitHubRepoInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "douhashi", info.Owner)
	assert.Equal(t, "kobito", info.Repo)

	branch, err := repo.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestRepository_DefaultBranch(t *testing.T) {
	ctx := context.Background()

	t.Run("正常系: origin/HEADが指すブランチを返す", func(t *testing.T) {
		dir := helpers.InitGitRepo(t)
		helpers.SetGitRemote(t, dir, "origin", "git@github.com:douhashi/kobito.git")
		helpers.SetOriginHEAD(t, dir, "develop")
		repo := NewRepository(dir, logger.NewNop())

		// 作業ブランチをチェックアウトしていても影響しない
		_, err := repo.command.Git(ctx, dir, "checkout", "-b", "issue-100-fix")
		require.NoError(t, err)

		branch, err := repo.RemoteDefaultBranch(ctx)
		require.NoError(t, err)
		assert.Equal(t, "develop", branch)
	})

	t.Run("異常系: origin/HEADが未設定", func(t *testing.T) {
		dir := helpers.InitGitRepo(t)
		repo := NewRepository(dir, logger.NewNop())

		_, err := repo.RemoteDefaultBranch(ctx)
		assert.Error(t, err)
	})

	t.Run("正常系: ローカルのmainを返す", func(t *testing.T) {
		dir := helpers.InitGitRepo(t)
		repo := NewRepository(dir, logger.NewNop())
		_, err := repo.command.Git(ctx, dir, "checkout", "-b", "issue-7-test")
		require.NoError(t, err)

		branch, err := repo.LocalDefaultBranch(ctx)
		require.NoError(t, err)
		assert.Equal(t, "main", branch)
	})

	t.Run("正常系: mainがなければmaster", func(t *testing.T) {
		dir := helpers.InitGitRepo(t)
		repo := NewRepository(dir, logger.NewNop())
		_, err := repo.command.Git(ctx, dir, "branch", "-m", "main", "master")
		require.NoError(t, err)

		branch, err := repo.LocalDefaultBranch(ctx)
		require.NoError(t, err)
		assert.Equal(t, "master", branch)
	})

	t.Run("異常系: mainもmasterもない", func(t *testing.T) {
		dir := helpers.InitGitRepo(t)
		repo := NewRepository(dir, logger.NewNop())
		_, err := repo.command.Git(ctx, dir, "branch", "-m", "main", "trunk")
		require.NoError(t, err)

		_, err = repo.LocalDefaultBranch(ctx)
		assert.Error(t, err)
	})
}
