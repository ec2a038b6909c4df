package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vsinha/mfgplan/pkg/application/services/orchestration"
)

func newScheduleCommand(opts *rootOptions) *cobra.Command {
	var schedule string
	var months int

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the nightly requirement rebuild on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if schedule == "" {
				schedule = opts.app.Config.MRPSchedule
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler := orchestration.NewScheduler(ctx, opts.app.Orchestrator)
			if _, err := scheduler.AddNightlyRebuild(schedule, months); err != nil {
				return err
			}
			scheduler.Start()
			fmt.Fprintf(opts.out, "Scheduler started (%s, %d month(s)). Press Ctrl+C to exit.\n", schedule, months)

			<-ctx.Done()
			<-scheduler.Stop().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "cron", "", "Cron expression (defaults to MRP_SCHEDULE)")
	cmd.Flags().IntVar(&months, "months", 2, "Months to rebuild from the current one")
	return cmd
}
