package app

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fernandoxavier02/AccountingNews/internal/config"
	"github.com/fernandoxavier02/AccountingNews/internal/logger"
	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// cli はサブコマンド間で共有する状態を保持する。
type cli struct {
	logOut  io.Writer
	cfgFile string
	cfg     *config.Config
}

// NewRootCommand はtributoflowのルートコマンドを生成する。
// サブコマンドを省略した場合はserveとして動作する。
// ログはlogOutに、コマンドの実行結果はコマンドの標準出力に書き出す。
func NewRootCommand(logOut io.Writer) *cobra.Command {
	c := &cli{logOut: logOut}

	root := &cobra.Command{
		Use:               "tributoflow",
		Short:             "税制改革ニュースのRSS収集・関連度判定サービス",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.init,
		RunE:              c.serve,
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "設定ファイル（環境変数が優先される）")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "APIサーバーを起動する",
			Args:  cobra.NoArgs,
			RunE:  c.serve,
		},
		&cobra.Command{
			Use:   "worker",
			Short: "フェッチ・リスコア・履歴削除のワーカーを起動する",
			Args:  cobra.NoArgs,
			RunE:  c.worker,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "未適用のマイグレーションを適用する",
			Args:  cobra.NoArgs,
			RunE:  c.migrate,
		},
		&cobra.Command{
			Use:   "rescore",
			Short: "保存済み記事のスコアを再計算する",
			Args:  cobra.NoArgs,
			RunE:  c.rescore,
		},
		&cobra.Command{
			Use:   "seed-sources <file.yaml>",
			Short: "YAMLファイルから配信元を登録する",
			Args:  cobra.ExactArgs(1),
			RunE:  c.seedSources,
		},
		c.healthcheckCommand(),
		c.analyzeCommand(),
	)
	return root
}

// init は設定を読み込み、構造化ログを初期化する。
func (c *cli) init(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c.cfg = cfg
	logger.SetupDefault(c.logOut, logger.ParseLevel(cfg.LogLevel))
	return nil
}

// healthcheckCommand はdistroless環境でのDockerヘルスチェック用サブコマンド。
// 設定の読み込みを行わないため、DATABASE_URLなどが未設定でも動作する。
func (c *cli) healthcheckCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:               "healthcheck",
		Short:             "ローカルの/healthを確認する",
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port == "" {
				port = os.Getenv("SERVER_PORT")
			}
			if port == "" {
				port = "8080"
			}
			return runHealthcheck(cmd.Context(), fmt.Sprintf("http://localhost:%s/health", port))
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "確認するポート（省略時はSERVER_PORT）")
	return cmd
}

// analyzeCommand は1件の記事をフィルタとスコアラーにかけ、結果をJSONで出力する。
// データベースを使わないため設定の読み込みは行わない。
func (c *cli) analyzeCommand() *cobra.Command {
	var entry model.FeedEntry
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "記事1件の関連度を判定する",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger.SetupDefault(cmd.ErrOrStderr(), logger.ParseLevel(os.Getenv("LOG_LEVEL")))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd.OutOrStdout(), entry)
		},
	}
	f := cmd.Flags()
	f.StringVar(&entry.Title, "title", "", "記事タイトル")
	f.StringVar(&entry.Description, "description", "", "記事の概要（HTML可）")
	f.StringVar(&entry.Content, "content", "", "記事本文（HTML可）")
	f.StringVar(&entry.SourceName, "source", "", "配信元名")
	f.IntVar(&entry.SourceCredibility, "credibility", model.DefaultCredibility, "配信元の信頼度（0〜100）")
	return cmd
}

func (c *cli) serve(cmd *cobra.Command, _ []string) error {
	return runServe(cmd.Context(), c.cfg)
}

func (c *cli) worker(cmd *cobra.Command, _ []string) error {
	return runWorker(cmd.Context(), c.cfg)
}

func (c *cli) migrate(*cobra.Command, []string) error {
	return runMigrate(c.cfg)
}

func (c *cli) rescore(cmd *cobra.Command, _ []string) error {
	return runRescore(cmd.Context(), c.cfg)
}

func (c *cli) seedSources(cmd *cobra.Command, args []string) error {
	return runSeed(cmd.Context(), c.cfg, args[0], cmd.OutOrStdout())
}
