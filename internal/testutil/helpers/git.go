package helpers

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// RequireGit はgitがなければテストをスキップする
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not installed")
	}
}

// InitGitRepo はmainブランチに1コミットあるリポジトリを一時ディレクトリに作る
func InitGitRepo(t *testing.T) string {
	t.Helper()
	RequireGit(t)

	dir := t.TempDir()
	for _, args := range [][]string{
		{"init"},
		{"checkout", "-b", "main"},
		{"config", "user.email", "kobito@example.com"},
		{"config", "user.name", "kobito"},
		{"config", "commit.gpgsign", "false"},
	} {
		runGit(t, dir, args...)
	}

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0644); err != nil {
		t.Fatalf("failed to write README.md: %v", err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "initial")
	return dir
}

// SetGitRemote は指定されたリポジトリにリモートURLを設定する
func SetGitRemote(t *testing.T, dir, remoteName, remoteURL string) {
	t.Helper()
	runGit(t, dir, "remote", "add", remoteName, remoteURL)
}

// SetOriginHEAD はrefs/remotes/origin/HEADがbranchを指すようにする
// 現在のHEADをorigin/branchとして登録するので、ネットワークは使わない
func SetOriginHEAD(t *testing.T, dir, branch string) {
	t.Helper()
	runGit(t, dir, "update-ref", "refs/remotes/origin/"+branch, "HEAD")
	runGit(t, dir, "symbolic-ref", "refs/remotes/origin/HEAD", "refs/remotes/origin/"+branch)
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}
