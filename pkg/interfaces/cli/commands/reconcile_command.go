package commands

import (
	"github.com/spf13/cobra"

	"github.com/vsinha/mfgplan/pkg/application/services/reconcile"
	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/interfaces/cli/output"
)

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var kind string
	var persist bool

	cmd := &cobra.Command{
		Use:   "reconcile <month>",
		Short: "Attribute a month's issue lines to planned requirements and report exceptions",
		Long: `Matches issue lines to stock items and linked batches, compares issued with
planned quantities per item and lists overIssued, noPlanButIssued and
(once the month has ended) plannedNotIssued items. Allocations are only
written with --persist; approximate matches stay approximate until a
planner confirms them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			horizon, err := parseMonth(args[0])
			if err != nil {
				return err
			}
			report, saved, err := opts.app.Orchestrator.Reconcile(cmd.Context(), horizon, entities.MaterialKind(kind), persist)
			if err != nil {
				return err
			}
			tables := output.ReconcileTables(report)
			if saved != nil {
				tables = append(tables, output.AllocationSummaryTable(saved))
			}
			return opts.emit("reconcile_"+report.HorizonStart, report, tables...)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only items of this material kind (RM, PM, SP, FG)")
	cmd.Flags().BoolVar(&persist, "persist", false, "Write the proposed allocations to the issue lines")
	cmd.AddCommand(newReconcileConfirmCommand(opts))
	return cmd
}

func newReconcileConfirmCommand(opts *rootOptions) *cobra.Command {
	var c reconcile.Confirmation

	cmd := &cobra.Command{
		Use:   "confirm <issue-id>",
		Short: "Confirm an issue line's allocation by hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.IssueID = args[0]
			line, err := opts.app.Orchestrator.Reconciler().ConfirmAllocation(cmd.Context(), c)
			if err != nil {
				return err
			}
			deref := func(s *string) string {
				if s == nil {
					return ""
				}
				return *s
			}
			return opts.emit("confirm_"+line.ID, line, output.Table{
				Title:   "Confirmed allocation",
				Headers: []string{"Issue", "Stock item", "Batch", "Product", "Status", "By"},
				Rows: [][]string{{
					line.ID, deref(line.StockItemID), deref(line.BatchID), deref(line.ProductID),
					string(line.AllocationStatus), line.ConfirmedBy,
				}},
			})
		},
	}
	cmd.Flags().StringVar(&c.StockItemID, "item", "", "Stock item to allocate to (defaults to the proposed one)")
	cmd.Flags().StringVar(&c.BatchID, "batch", "", "Planned batch to attribute the issue to")
	cmd.Flags().StringVar(&c.User, "user", "", "Who confirms the allocation")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
