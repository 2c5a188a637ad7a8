package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Analyse recorded run telemetry and suggest tuning changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, _, cleanup, err := setup(cmd.Context(), nil, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		rep, err := a.Service.Optimize(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		fmt.Fprintln(out, rep.Summary)
		if len(rep.Bottlenecks) > 0 {
			fmt.Fprintf(out, "bottlenecks: %v\n", rep.Bottlenecks)
		}
		return nil
	},
}

func init() {
	optimizeCmd.Flags().Bool("json", false, "print the report as JSON")
}
