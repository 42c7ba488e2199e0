package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

func newSweepNoShowsCommand() *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "sweep-no-shows",
		Short: "Mark overdue scheduled appointments as no-shows once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if !cmd.Flags().Changed("grace") {
				grace = a.cfg.NoShowGrace
			}
			marked, err := a.svc.SweepNoShows(ctx, grace)
			if err != nil {
				a.log.Error("no-show sweep failed", slog.Any("err", err))
				return err
			}
			a.log.Info("no-show sweep finished", slog.Int("marked", marked), slog.Duration("grace", grace))
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 0, "how long after an appointment ends before it counts as a no-show (defaults to VETCARE_NO_SHOW_GRACE)")
	return cmd
}
