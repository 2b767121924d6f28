package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/douhashi/kobito/internal/daemon"
	"github.com/douhashi/kobito/internal/git"
	"github.com/douhashi/kobito/internal/state"
	"github.com/spf13/cobra"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Width(14).Foreground(lipgloss.Color("8"))
	runningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	stoppedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	sectionStyle = lipgloss.NewStyle().MarginTop(1).Bold(true)
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "kobitoの実行状態と中断中のIssueを表示",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	repo, err := resolveRepoContext(cmd.Context())
	if err != nil {
		return err
	}

	status, err := newDaemonManagerFunc().Status(repo.pidFile())
	if err != nil {
		return fmt.Errorf("プロセス状態の取得に失敗: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("kobito status: "+repo.identifier))
	// gitリポジトリでなければ現在のブランチは表示しない
	branch, _ := git.NewRepository(repo.path, appLog).CurrentBranch(cmd.Context())

	store := repo.stateStore()
	renderProcess(out, status, repo, store, branch)
	renderPendingStates(out, store)
	return nil
}

func renderProcess(out io.Writer, status *daemon.ProcessStatus, repo *repoContext, store *state.Store, branch string) {
	row := func(label, value string) {
		fmt.Fprintln(out, labelStyle.Render(label)+value)
	}

	if !status.Running {
		row("プロセス", stoppedStyle.Render("停止中"))
	} else {
		row("プロセス", runningStyle.Render("実行中"))
		row("PID", fmt.Sprintf("%d", status.PID))
		row("起動時刻", status.StartTime.Format(time.RFC3339))
		row("稼働時間", time.Since(status.StartTime).Round(time.Second).String())
	}
	row("トラッカー", appConfig.Tracker)
	row("ベース", appConfig.Pipeline.BaseBranch)
	if branch != "" {
		row("現在のブランチ", branch)
	}
	row("監視間隔", appConfig.Watch.PollInterval.String())
	if loadedConfigPath != "" {
		row("設定", loadedConfigPath)
	}
	row("データ", repo.paths.DataDir())
	row("状態", store.Dir())
	row("ログ", repo.logFile())
}

func renderPendingStates(out io.Writer, store *state.Store) {
	pending := store.ListPending()
	fmt.Fprintln(out, sectionStyle.Render(fmt.Sprintf("中断中のIssue (%d)", len(pending))))

	if len(pending) == 0 {
		fmt.Fprintln(out, "  なし")
		return
	}

	for _, id := range pending {
		st, ok := store.Load(id)
		if !ok {
			fmt.Fprintf(out, "  %s  %s\n", id, stoppedStyle.Render("読み込めません"))
			continue
		}

		completed := make([]string, 0, len(st.CompletedSteps))
		for _, step := range st.CompletedSteps {
			completed = append(completed, string(step))
		}
		fmt.Fprintf(out, "  %s  %s  次: %s  リトライ: %d  更新: %s\n",
			id,
			st.BranchName,
			stepStyle.Render(string(st.CurrentStep)),
			st.RetryCount,
			st.LastUpdated.Local().Format("2006-01-02 15:04:05"),
		)
		if len(completed) > 0 {
			fmt.Fprintf(out, "      完了: %s\n", strings.Join(completed, ", "))
		}
	}
}
