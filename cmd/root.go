package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mautops/promotion-vote/internal/api"
	"github.com/mautops/promotion-vote/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "promotion-vote",
	Short: "Anonymous promotion voting and appeal service",
	Long: `Promotion Vote runs the anonymous promotion voting and appeal subsystem.
It records anonymized votes, aggregates statistics, audits vote integrity
and drives appeals through their review state machine.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file with APP_ overrides, ignored when absent")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: search in current directory, ./config, or $HOME/.promotion-vote)")
}

// GetRootCmd 返回根命令(用于测试)
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// loadRuntime 加载配置并创建日志记录器
func loadRuntime() (*config.Config, *logrus.Logger, error) {
	// .env 只补充未设置的环境变量
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := api.NewLoggerFromConfig(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	api.SetLogger(logger)

	return cfg, logger, nil
}
