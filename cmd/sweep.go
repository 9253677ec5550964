package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepTimeoutMins int

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Recover stale in-progress jobs",
	Long:  "Returns jobs stuck in_progress past the claim timeout back to pending, typically after a worker crash. Safe to run from cron.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer st.close()

		timeoutMins := sweepTimeoutMins
		if timeoutMins <= 0 {
			timeoutMins = cfg.Queue.ClaimTimeoutMins
		}

		n, err := st.jobs.SweepStale(ctx, time.Duration(timeoutMins)*time.Minute)
		if err != nil {
			return err
		}
		zap.L().Info("sweep complete", zap.Int("recovered", n))
		return nil
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepTimeoutMins, "timeout-mins", 0, "claim timeout in minutes (default from config)")
	rootCmd.AddCommand(sweepCmd)
}
