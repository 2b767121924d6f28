package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

type cleanOptions struct {
	all bool
}

func newCleanCmd() *cobra.Command {
	opts := &cleanOptions{}

	cmd := &cobra.Command{
		Use:   "clean [issue-id]",
		Short: "保存された処理状態を削除",
		Long: `中断したIssueの処理状態を削除します。
削除したIssueは次回、ブランチ作成から処理をやり直します。

使用例:
  kobito clean 42          # Issue 42 の状態を削除
  kobito clean PROJ-12     # JIRAチケットの状態を削除
  kobito clean --all       # すべての状態を削除`,
		Args: func(cmd *cobra.Command, args []string) error {
			return validateCleanArgs(opts, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "すべての処理状態を削除")

	return cmd
}

func validateCleanArgs(opts *cleanOptions, args []string) error {
	if opts.all {
		if len(args) > 0 {
			return fmt.Errorf("--all オプションを使用する場合は引数を指定しないでください")
		}
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("Issue IDを指定するか、--all オプションを使用してください")
	}
	if len(args) > 1 {
		return fmt.Errorf("引数は1つだけ指定してください")
	}
	return nil
}

func runClean(cmd *cobra.Command, opts *cleanOptions, args []string) error {
	repo, err := resolveRepoContext(cmd.Context())
	if err != nil {
		return err
	}
	if dm := newDaemonManagerFunc(); dm.IsRunning(repo.pidFile()) {
		return fmt.Errorf("kobitoが実行中です。先に 'kobito stop' を実行してください")
	}

	store := repo.stateStore()
	out := cmd.OutOrStdout()

	pending := store.ListPending()
	ids := args
	if opts.all {
		ids = pending
	}

	// 壊れた状態ファイルも削除できるよう、Loadではなくファイル一覧で判定する
	exists := make(map[string]bool, len(pending))
	for _, id := range pending {
		exists[id] = true
	}

	removed := 0
	for _, id := range ids {
		if !exists[id] {
			fmt.Fprintf(out, "Issue %s の保存された状態はありません\n", id)
			continue
		}
		store.Remove(id)
		removed++
		fmt.Fprintf(out, "Issue %s の状態を削除しました\n", id)
	}

	if opts.all {
		fmt.Fprintf(out, "%d件の状態を削除しました\n", removed)
	}
	return nil
}
