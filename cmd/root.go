package cmd

import (
	"fmt"
	"os"

	"github.com/douhashi/kobito/internal/config"
	"github.com/douhashi/kobito/internal/logger"
	"github.com/douhashi/kobito/internal/version"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	verbose  bool
	logLevel string

	rootCmd   *cobra.Command
	appConfig *config.Config
	appLog    logger.Logger
	// loadedConfigPath は実際に読み込んだ設定ファイル。見つからなかった場合は空
	loadedConfigPath string
)

func init() {
	rootCmd = NewRootCmd()
}

// NewRootCmd は全てのサブコマンドを持つルートコマンドを作成する
func NewRootCmd() *cobra.Command {
	cmd := newRootCmd()
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newResumeCmd())
	cmd.AddCommand(newCleanCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kobito",
		Short: "担当Issueからプルリクエストを作る常駐エージェント",
		Long: `kobitoは、自分に割り当てられたIssueを監視し、
claudeでブランチの作成・実装・コミット・プルリクエスト作成までを自動で進めます。
レート制限で中断した場合は、次の実行で中断したステップから再開します。`,
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "設定ファイルのパス")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "詳細出力")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")

	return cmd
}

// Execute はルートコマンドを実行する
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initialize は設定ファイルを読み込み、ロガーを初期化する
func initialize(cmd *cobra.Command) error {
	if verbose {
		os.Setenv("DEBUG", "true")
	}

	cfg := config.NewConfig()
	flags := config.WithFlags(cmd.Flags())
	if cfgFile != "" {
		if err := cfg.Load(cfgFile, flags); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		loadedConfigPath = cfgFile
	} else {
		loadedConfigPath = cfg.LoadOrDefault("", flags)
	}
	appConfig = cfg

	log, err := newLogger(cfg, "")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLog = log
	appLog.Debug("Configuration loaded", "path", loadedConfigPath, "tracker", cfg.Tracker)
	return nil
}

// newLogger は設定と環境変数からロガーを作成する。outputが空なら標準出力
func newLogger(cfg *config.Config, output string) (logger.Logger, error) {
	return logger.NewFromEnv(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: output,
	})
}
