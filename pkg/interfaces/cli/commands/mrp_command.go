package commands

import (
	"github.com/spf13/cobra"

	"github.com/vsinha/mfgplan/pkg/interfaces/cli/output"
)

func newMRPCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mrp",
		Short: "Requirement explosion runs",
	}
	cmd.AddCommand(newMRPRebuildCommand(opts), newMRPTotalsCommand(opts))
	return cmd
}

func newMRPRebuildCommand(opts *rootOptions) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "rebuild <month>",
		Short: "Explode a month's plan and forecasts into a new active run",
		Long: `Explodes the batch plan (raw material BOMs) and SKU forecasts (packaging
BOMs) of the month, stores the lineage rows as a new finalized run and
activates it. With --to, every month of the window is rebuilt in parallel.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			month, err := parseMonth(args[0])
			if err != nil {
				return err
			}
			po := opts.app.Orchestrator

			if to == "" {
				summary, err := po.RebuildMonth(cmd.Context(), month)
				if err != nil {
					return err
				}
				return opts.emit("mrp_"+summary.Month, summary, output.MRPTables(summary)...)
			}

			end, err := parseMonth(to)
			if err != nil {
				return err
			}
			summary, err := po.RebuildMonths(cmd.Context(), month, end)
			if err != nil {
				return err
			}
			var tables []output.Table
			for _, run := range summary.Runs {
				tables = append(tables, output.MRPTables(run)...)
			}
			tables = append(tables, output.FailuresTable(summary.Failures))
			return opts.emit("mrp_"+args[0]+"_"+to, summary, tables...)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Rebuild every month up to this one, YYYY-MM")
	return cmd
}

func newMRPTotalsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "totals <month>",
		Short: "Show the active run's totals with any covering season overlay applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			month, err := parseMonth(args[0])
			if err != nil {
				return err
			}
			totals, err := opts.app.Orchestrator.MRP().LatestTotals(cmd.Context(), month)
			if err != nil {
				return err
			}
			return opts.emit("totals_"+args[0], totals, output.TotalsTable("Requirements "+args[0], totals))
		},
	}
}
