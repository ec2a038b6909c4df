package commands

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vsinha/mfgplan/pkg/application/services/bom"
	"github.com/vsinha/mfgplan/pkg/interfaces/cli/output"
)

func newBOMCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bom",
		Short: "Inspect bills of materials",
	}
	cmd.AddCommand(newBOMResolveCommand(opts), newBOMCheckCommand(opts))
	return cmd
}

func newBOMResolveCommand(opts *rootOptions) *cobra.Command {
	var header, sku, target string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the effective BOM of a header, optionally for a SKU",
		RunE: func(cmd *cobra.Command, args []string) error {
			qty := decimal.Zero
			if target != "" {
				var err error
				if qty, err = parseDecimal("target", target); err != nil {
					return err
				}
			}
			svc := bom.NewService(opts.app.Store, opts.app.Store, opts.app.Logger)
			effective, err := svc.ResolveEffectiveBom(cmd.Context(), header, sku)
			if err != nil {
				return err
			}
			return opts.emit("bom_"+effective.HeaderID, effective, output.BOMTables(effective, qty)...)
		},
	}
	cmd.Flags().StringVar(&header, "header", "", "BOM header or PLM template id (defaults to the SKU's pack template)")
	cmd.Flags().StringVar(&sku, "sku", "", "SKU whose overrides apply")
	cmd.Flags().StringVar(&target, "target", "", "Scale the lines to this output quantity")
	return cmd
}

func newBOMCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check stored BOMs for cycles, duplicate lines and unknown items",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := bom.NewService(opts.app.Store, opts.app.Store, opts.app.Logger)
			result, err := svc.Check(cmd.Context())
			if err != nil {
				return err
			}
			return opts.emit("bom_check", result, output.CheckTables(result)...)
		},
	}
}
