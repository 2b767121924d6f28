package cmd

import (
	"fmt"

	"github.com/douhashi/kobito/internal/claude"
	"github.com/douhashi/kobito/internal/config"
	"github.com/spf13/cobra"
)

type initOptions struct {
	path string
}

// テスト用にモック可能な関数変数
var checkClaudeFunc = func(cfg claude.Config) error {
	return claude.NewExecutor(cfg, ".", appLog).CheckExists()
}

func newInitCmd() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "設定ファイルを作成",
		Long: `デフォルト値を書き込んだ設定ファイルを作成します。
既存のファイルは上書きしません。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.path, "path", "p", "", "作成する設定ファイルのパス (デフォルト: ~/.config/kobito/kobito.yml)")

	return cmd
}

func runInit(cmd *cobra.Command, opts *initOptions) error {
	out := cmd.OutOrStdout()

	path := opts.path
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "設定ファイルを作成しました: %s\n", path)

	if err := checkClaudeFunc(appConfig.Claude); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "警告: %v\n", err)
	}

	fmt.Fprintln(out, "次のステップ:")
	fmt.Fprintln(out, "  1. GITHUB_TOKEN を設定するか、設定ファイルの github.token を編集してください")
	fmt.Fprintln(out, "  2. リポジトリのディレクトリで 'kobito start' を実行してください")
	return nil
}
