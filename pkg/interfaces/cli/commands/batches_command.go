package commands

import (
	"github.com/spf13/cobra"

	"github.com/vsinha/mfgplan/pkg/domain/services"
	"github.com/vsinha/mfgplan/pkg/interfaces/cli/output"
)

func newBatchesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Batch sizing",
	}
	cmd.AddCommand(newBatchesComputeCommand(opts))
	return cmd
}

func newBatchesComputeCommand(opts *rootOptions) *cobra.Command {
	var total, min, max, preferred, nudge string

	cmd := &cobra.Command{
		Use:         "compute",
		Short:       "Split a make quantity into batches",
		Example:     "  planner batches compute --total 1130 --min 200 --max 400 --preferred 350",
		Annotations: map[string]string{offline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseDecimal("total", total)
			if err != nil {
				return err
			}
			lo, err := parseDecimal("min", min)
			if err != nil {
				return err
			}
			hi, err := parseDecimal("max", max)
			if err != nil {
				return err
			}
			p, err := parseDecimal("preferred", preferred)
			if err != nil {
				return err
			}

			split, err := services.ComputeBatches(t, lo, hi, p)
			if err != nil {
				return err
			}
			if nudge != "" {
				pct, err := parseDecimal("nudge-pct", nudge)
				if err != nil {
					return err
				}
				split = services.NudgeResidual(split, p, hi, pct)
			}
			return opts.emit("batches", split, output.BatchTable(split))
		},
	}
	cmd.Flags().StringVar(&total, "total", "", "Quantity to split")
	cmd.Flags().StringVar(&min, "min", "", "Minimum batch size")
	cmd.Flags().StringVar(&max, "max", "", "Maximum batch size")
	cmd.Flags().StringVar(&preferred, "preferred", "", "Preferred batch size")
	cmd.Flags().StringVar(&nudge, "nudge-pct", "", "Fold a residual up to this percent of preferred into the batches")
	for _, name := range []string{"total", "min", "max", "preferred"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
