package commands

import (
	"github.com/spf13/cobra"

	"github.com/vsinha/mfgplan/pkg/interfaces/cli/output"
)

func newOverlayCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overlay",
		Short: "Season overlays",
	}
	cmd.AddCommand(newOverlayBuildCommand(opts), newOverlayActivateCommand(opts))
	return cmd
}

func newOverlayBuildCommand(opts *rootOptions) *cobra.Command {
	var activate bool

	cmd := &cobra.Command{
		Use:   "build <from> <to>",
		Short: "Redistribute seasonal requirements of a window into procurement months",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseMonth(args[0])
			if err != nil {
				return err
			}
			end, err := parseMonth(args[1])
			if err != nil {
				return err
			}
			summary, err := opts.app.Orchestrator.BuildOverlay(cmd.Context(), start, end, activate)
			if err != nil {
				return err
			}
			return opts.emit("overlay_"+summary.PlanStart+"_"+summary.PlanEnd, summary, output.OverlayTables(summary)...)
		},
	}
	cmd.Flags().BoolVar(&activate, "activate", false, "Activate the overlay run once built")
	return cmd
}

func newOverlayActivateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <run-id>",
		Short: "Make a built overlay run the active one for its window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.app.Orchestrator.Overlays().Activate(cmd.Context(), args[0]); err != nil {
				return err
			}
			result := map[string]string{"run_id": args[0], "status": "active"}
			return opts.emit("overlay_activate", result, output.Table{
				Title:   "Overlay activated",
				Headers: []string{"Run"},
				Rows:    [][]string{{args[0]}},
			})
		},
	}
}
