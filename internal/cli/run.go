package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"DemandSentinel/internal/config"
	"DemandSentinel/internal/model"
	"DemandSentinel/internal/notifier"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one analysis over the configured data source",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		asJSON, _ := cmd.Flags().GetBool("json")
		notify, _ := cmd.Flags().GetBool("notify")

		ctx := cmd.Context()
		a, log, cleanup, err := setup(ctx, nil, func(c *config.Config) {
			if dataDir != "" {
				c.Source.Kind = config.SourceFile
				c.Source.DataDir = dataDir
			}
		})
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := a.Service.Analyze(ctx)
		if err != nil {
			return err
		}

		if notify {
			if a.Notifier == nil {
				log.Warnf(ctx, "--notify given but telegram is not configured")
			} else {
				if err := a.Notifier.SendWithRetry(ctx, notifier.FormatRunDigest(result), 3); err != nil {
					log.Errorf(ctx, "send digest: %v", err)
				}
				if msg := notifier.FormatCriticalAlerts(result.Alerts); msg != "" {
					if err := a.Notifier.SendWithRetry(ctx, msg, 3); err != nil {
						log.Errorf(ctx, "send critical alerts: %v", err)
					}
				}
			}
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(out, result.ExecutionSummary)
		}
		if result.Status != model.RunDone {
			return fmt.Errorf("run %s failed at %s: %s", result.RunID, result.FailedStage, result.Error)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("data-dir", "", "read sales and inventory files from this directory")
	runCmd.Flags().Bool("json", false, "print the full run result as JSON")
	runCmd.Flags().Bool("notify", false, "send the run digest to telegram")
}
