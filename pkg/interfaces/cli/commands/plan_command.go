package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vsinha/mfgplan/pkg/interfaces/cli/output"
)

func newPlanCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build and maintain batch plans",
	}
	cmd.AddCommand(
		newPlanBuildCommand(opts),
		newPlanRebuildLineCommand(opts),
		newPlanSeedCommand(opts),
		newPlanLinkCommand(opts),
	)
	return cmd
}

func newPlanBuildCommand(opts *rootOptions) *cobra.Command {
	var header, title, from, to string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Plan batches for every product-month with demand in a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseMonth(from)
			if err != nil {
				return err
			}
			end := start
			if to != "" {
				if end, err = parseMonth(to); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			po := opts.app.Orchestrator
			if header == "" {
				if title == "" {
					title = fmt.Sprintf("Plan %s..%s", start.Format("2006-01"), end.Format("2006-01"))
				}
				created, err := po.Plans().CreateHeader(ctx, title, start, end)
				if err != nil {
					return err
				}
				header = created.ID
			}
			summary, err := po.BuildPlan(ctx, header, start, end)
			if err != nil {
				return err
			}
			return opts.emit("plan_"+summary.HeaderID, summary, output.PlanTables(summary)...)
		},
	}
	cmd.Flags().StringVar(&header, "header", "", "Existing plan header (a new one is created when empty)")
	cmd.Flags().StringVar(&title, "title", "", "Title of a new plan header")
	cmd.Flags().StringVar(&from, "from", "", "First month, YYYY-MM")
	cmd.Flags().StringVar(&to, "to", "", "Last month, YYYY-MM (defaults to --from)")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newPlanRebuildLineCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-line <line-id>",
		Short: "Re-derive one plan line from current demand and rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := opts.app.Orchestrator.RebuildLine(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.emit("line_"+summary.LineID, summary, output.PlanLineTable(*summary), output.WarningsTable(summary.Warnings))
		},
	}
}

func newPlanSeedCommand(opts *rootOptions) *cobra.Command {
	var sizes string

	cmd := &cobra.Command{
		Use:     "seed <line-id>",
		Short:   "Replace a line's unlinked batches with given sizes",
		Example: "  planner plan seed 7f9c... --sizes 300,300",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseDecimals("sizes", sizes)
			if err != nil {
				return err
			}
			summary, err := opts.app.Orchestrator.SeedBatches(cmd.Context(), args[0], parsed)
			if err != nil {
				return err
			}
			return opts.emit("line_"+summary.LineID, summary, output.PlanLineTable(*summary))
		},
	}
	cmd.Flags().StringVar(&sizes, "sizes", "", "Comma separated batch sizes")
	_ = cmd.MarkFlagRequired("sizes")
	return cmd
}

func newPlanLinkCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link <batch-id> <record-ref>",
		Short: "Link a planned batch to its manufacturing record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := opts.app.Orchestrator.Plans().MapBatchToRecord(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return opts.emit("link", batch, output.Table{
				Title:   "Linked batch",
				Headers: []string{"Batch", "Line", "Seq", "Size", "Record"},
				Rows: [][]string{{
					batch.ID, batch.LineID, fmt.Sprint(batch.SeqNo), batch.Size.String(), *batch.RecordRef,
				}},
			})
		},
	}
}
