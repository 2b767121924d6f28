package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/douhashi/kobito/internal/daemon"
	"github.com/douhashi/kobito/internal/orchestrator"
	"github.com/douhashi/kobito/internal/pipeline"
	"github.com/douhashi/kobito/internal/testutil/mocks"
	"github.com/stretchr/testify/require"
)

// testEnv はコマンドのテストで使う隔離された環境
type testEnv struct {
	configPath string
	stateDir   string
	repoPath   string
	daemon     *fakeDaemon
}

const testConfig = `tracker: github
github:
  token: test-token
  owner: o
  repo: r
watch:
  poll_interval: 1s
  max_retries: 1
  retry_base_delay: 1ms
pipeline:
  base_branch: main
  process_interval: 1s
  state_dir: %STATE_DIR%
log:
  level: error
`

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", base)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))
	for _, key := range []string{"GITHUB_TOKEN", "JIRA_TOKEN", "JIRA_URL", "JIRA_USERNAME", "LOG_LEVEL", "LOG_FORMAT", "DEBUG", daemon.EnvDaemonMode} {
		t.Setenv(key, "")
	}

	env := &testEnv{
		configPath: filepath.Join(base, "kobito.yml"),
		stateDir:   filepath.Join(base, "state"),
		repoPath:   filepath.Join(base, "repo"),
		daemon:     &fakeDaemon{},
	}
	require.NoError(t, os.MkdirAll(env.repoPath, 0755))
	content := strings.ReplaceAll(testConfig, "%STATE_DIR%", env.stateDir)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0600))

	origFind, origDaemon := findRepoRootFunc, newDaemonManagerFunc
	findRepoRootFunc = func() (string, error) { return env.repoPath, nil }
	newDaemonManagerFunc = func() daemon.Manager { return env.daemon }
	t.Cleanup(func() {
		findRepoRootFunc, newDaemonManagerFunc = origFind, origDaemon
	})

	return env
}

// run は設定ファイルを指定してコマンドを実行する
func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeCommand(t, append([]string{"--config", e.configPath}, args...)...)
}

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	cmd := NewRootCmd()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// stubOrchestrator はトラッカーとエージェントを差し替えたOrchestratorを作らせる
func stubOrchestrator(t *testing.T, tracker *mocks.MockTracker, agent pipeline.Agent) {
	t.Helper()
	orig := newOrchestratorFunc
	newOrchestratorFunc = func(opts orchestrator.Options) (*orchestrator.Orchestrator, error) {
		opts.Tracker = tracker
		opts.Branches = mocks.NewMockBranchManager().WithDefaultBehavior("issue-42-fix-login")
		opts.Agent = agent
		return orchestrator.New(opts)
	}
	t.Cleanup(func() { newOrchestratorFunc = orig })
}

type fakeDaemon struct {
	running   bool
	pid       int
	startPID  int
	startErr  error
	started   bool
	stopped   bool
	startArgs []string
}

func (f *fakeDaemon) Start(args []string, logFile string) (int, error) {
	f.started = true
	f.startArgs = args
	return f.startPID, f.startErr
}

func (f *fakeDaemon) Stop(pidFile string) error {
	f.stopped = true
	f.running = false
	return nil
}

func (f *fakeDaemon) Status(pidFile string) (*daemon.ProcessStatus, error) {
	if !f.running {
		return &daemon.ProcessStatus{Running: false}, nil
	}
	return &daemon.ProcessStatus{
		PID:       f.pid,
		StartTime: time.Now().Add(-time.Minute),
		RepoPath:  "/repo",
		Running:   true,
	}, nil
}

func (f *fakeDaemon) IsRunning(pidFile string) bool { return f.running }
