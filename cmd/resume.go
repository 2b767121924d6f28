package cmd

import (
	"context"
	"fmt"

	"github.com/douhashi/kobito/internal/orchestrator"
	"github.com/spf13/cobra"
)

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <issue-id>",
		Short: "中断したIssueの処理を再開",
		Long: `保存された処理状態から、中断したステップより先を1回だけ実行します。
バックグラウンドのkobitoとは独立して実行されます。

使用例:
  kobito resume 42
  kobito resume PROJ-12`,
		Args: cobra.ExactArgs(1),
		RunE: runResume,
	}
}

func runResume(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	issueID := args[0]
	out := cmd.OutOrStdout()

	repo, err := resolveRepoContext(ctx)
	if err != nil {
		return err
	}
	if dm := newDaemonManagerFunc(); dm.IsRunning(repo.pidFile()) {
		return fmt.Errorf("kobitoが実行中です。先に 'kobito stop' を実行してください")
	}

	o, err := newOrchestratorFunc(orchestrator.Options{
		Config:   appConfig,
		RepoPath: repo.path,
		Paths:    repo.paths,
		Logger:   appLog,
	})
	if err != nil {
		return err
	}

	if _, ok := o.Store().Load(issueID); !ok {
		return fmt.Errorf("Issue %s の保存された処理状態がありません", issueID)
	}

	issue, err := o.Tracker().GetIssue(ctx, issueID)
	if err != nil {
		return fmt.Errorf("Issueの取得に失敗: %w", err)
	}

	result := o.Pipeline().ResumeIssue(ctx, issueID, issue)
	fmt.Fprintf(out, "%s: %s\n", result.Kind, describeResult(o.Policy(), result))

	if !result.NeedsResume() {
		if err := o.Tracker().MarkIssueAsProcessed(context.WithoutCancel(ctx), issueID); err != nil {
			appLog.Warn("Failed to mark issue as processed", "issueId", issueID, "error", err)
		}
	}
	if result.IsFailure() {
		return fmt.Errorf("Issue %s の処理に失敗しました: %s", issueID, result.Reason)
	}
	return nil
}
