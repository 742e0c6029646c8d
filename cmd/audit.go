package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/mautops/promotion-vote/internal/container"
	"github.com/mautops/promotion-vote/internal/service"
	"github.com/spf13/cobra"
)

// auditCmd 对单个活动执行完整性检查
var auditCmd = &cobra.Command{
	Use:   "audit <campaign-id>",
	Short: "Check vote integrity of a campaign",
	Long: `Check a campaign for duplicated voter fingerprints and votes cast outside
the campaign window. With --remediate, every duplicated fingerprint keeps its
earliest valid vote and the rest are invalidated with an audit log entry.`,
	Args: cobra.ExactArgs(1),
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

		ctx := service.WithRequestID(cmd.Context(), "cli-audit")
		campaignID := args[0]
		operator, _ := cmd.Flags().GetString("operator")

		report, err := ctr.IntegrityService().AuditIntegrity(ctx, campaignID, operator)
		if err != nil {
			return fmt.Errorf("failed to validate integrity: %w", err)
		}

		result := map[string]interface{}{"report": report}

		remediate, _ := cmd.Flags().GetBool("remediate")
		if remediate && report.DuplicateFingerprints > 0 {
			count, err := ctr.IntegrityService().RemediateDuplicates(ctx, campaignID, operator)
			if err != nil {
				return fmt.Errorf("failed to remediate duplicates: %w", err)
			}
			result["invalidated"] = count
		}

		return writeJSON(cmd, result)
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().Bool("remediate", false, "Invalidate duplicated votes, keeping the earliest one")
	auditCmd.Flags().String("operator", "cli", "Operator recorded in logs and the audit log")
}

// writeJSON 以缩进 JSON 输出结果
func writeJSON(cmd *cobra.Command, v interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
