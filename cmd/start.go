package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/douhashi/kobito/internal/daemon"
	"github.com/douhashi/kobito/internal/orchestrator"
	"github.com/spf13/cobra"
)

type startOptions struct {
	foreground bool
	once       bool
}

func newStartCmd() *cobra.Command {
	opts := &startOptions{}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Issueの監視と処理を開始",
		Long: `担当Issueの監視を開始し、見つかったIssueを1件ずつ処理します。
デフォルトではバックグラウンドで起動します。

使用例:
  kobito start               # バックグラウンドで起動
  kobito start --foreground  # フォアグラウンドで起動
  kobito start --once        # 現在の担当Issueを1回だけ処理して終了`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.foreground, "foreground", "f", false, "フォアグラウンドで実行")
	cmd.Flags().BoolVar(&opts.once, "once", false, "現在の担当Issueを1回だけ処理して終了")
	cmd.Flags().String("base-branch", "", "ブランチの作成元 (デフォルト: 現在のブランチ)")
	cmd.Flags().String("tracker", "", "課題トラッカー (github, jira)")

	return cmd
}

func runStart(cmd *cobra.Command, opts *startOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	repo, err := resolveRepoContext(ctx)
	if err != nil {
		return err
	}
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dm := newDaemonManagerFunc()
	background := !opts.foreground && !opts.once

	if background && !daemon.IsDaemonMode() {
		if err := daemon.EnsureNotRunning(dm, repo.pidFile()); err != nil {
			return err
		}
		pid, err := dm.Start(os.Args[1:], repo.logFile())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "kobitoをバックグラウンドで起動しました (PID: %d)\n", pid)
		fmt.Fprintf(out, "ログ: %s\n", repo.logFile())
		fmt.Fprintln(out, "停止するには 'kobito stop' を実行してください")
		return nil
	}

	log := appLog
	if daemon.IsDaemonMode() {
		if log, err = newLogger(appConfig, repo.logFile()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	} else if !opts.once {
		if err := daemon.EnsureNotRunning(dm, repo.pidFile()); err != nil {
			return err
		}
	}

	o, err := newOrchestratorFunc(orchestrator.Options{
		Config:   appConfig,
		RepoPath: repo.path,
		Paths:    repo.paths,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.once {
		return runOnce(sigCtx, cmd, o)
	}

	if err := repo.paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create data directories: %w", err)
	}
	info := &daemon.ProcessInfo{PID: os.Getpid(), StartTime: time.Now(), RepoPath: repo.path}
	if err := daemon.WritePIDFile(repo.pidFile(), info); err != nil {
		return err
	}
	defer func() {
		if err := daemon.RemovePIDFile(repo.pidFile()); err != nil {
			log.Warn("Failed to remove PID file", "error", err)
		}
	}()

	if err := o.Start(sigCtx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Issueの監視を開始しました (%s, ベースブランチ: %s, 間隔: %s)\n",
		repo.identifier, appConfig.Pipeline.BaseBranch, o.Status().PollInterval)

	<-sigCtx.Done()
	log.Info("Shutdown signal received")
	o.Stop()
	return nil
}

func runOnce(ctx context.Context, cmd *cobra.Command, o *orchestrator.Orchestrator) error {
	out := cmd.OutOrStdout()

	results, err := o.RunOnce(ctx)
	for _, result := range results {
		fmt.Fprintf(out, "%s: %s\n", result.Kind, describeResult(o.Policy(), result))
	}
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "処理対象のIssueはありません")
	}
	return nil
}
