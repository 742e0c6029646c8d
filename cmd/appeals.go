package cmd

import (
	"fmt"

	"github.com/mautops/promotion-vote/internal/container"
	"github.com/spf13/cobra"
)

// appealsCmd 申诉运维命令
var appealsCmd = &cobra.Command{
	Use:   "appeals",
	Short: "Inspect appeals",
}

// appealsOverdueCmd 列出超出处理时限的申诉
var appealsOverdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "List open appeals past their resolution time limit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}

		ctr, err := container.NewContainer(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		appeals, err := ctr.AppealService().OverdueAppeals(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list overdue appeals: %w", err)
		}

		return writeJSON(cmd, appeals)
	},
}

func init() {
	rootCmd.AddCommand(appealsCmd)
	appealsCmd.AddCommand(appealsOverdueCmd)
}
