package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List and show persisted runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, _, cleanup, err := setup(cmd.Context(), nil, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		runs, err := a.Service.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			cmd.Println("No runs recorded.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tSTARTED\tSTATUS\tANOMALIES\tALERTS\tRECOMMENDATIONS\tCONFIDENCE")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.2f\n",
				r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.Anomalies, r.Alerts, r.Recommendations, r.OverallConfidence)
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a persisted run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, cleanup, err := setup(cmd.Context(), nil, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		run, err := a.Service.Run(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("load run %s: %w", args[0], err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "number of runs to list")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}
