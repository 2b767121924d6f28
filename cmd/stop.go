package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "バックグラウンドで実行中のkobitoを停止",
		Long: `現在のリポジトリに対応するkobitoプロセスを停止します。
処理中のIssueは状態が保存され、次回の起動時に中断したステップから再開します。`,
		Args: cobra.NoArgs,
		RunE: runStop,
	}
}

func runStop(cmd *cobra.Command, args []string) error {
	repo, err := resolveRepoContext(cmd.Context())
	if err != nil {
		return err
	}

	dm := newDaemonManagerFunc()
	pidFile := repo.pidFile()

	if !dm.IsRunning(pidFile) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s のkobitoは起動していません\n", repo.identifier)
		return nil
	}

	if err := dm.Stop(pidFile); err != nil {
		return fmt.Errorf("プロセスの停止に失敗: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s のkobitoを停止しました\n", repo.identifier)
	return nil
}
