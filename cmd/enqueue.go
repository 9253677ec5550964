package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/placedir/refresh-cli/internal/model"
)

var (
	enqueueReason   string
	enqueuePriority int
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <place-id>",
	Short: "Queue a refresh for a place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		placeID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid place id %q", args[0])
		}

		reason := model.RefreshReason(enqueueReason)
		if !reason.Valid() {
			return fmt.Errorf("unknown reason %q (want manual, scheduled, stale or new_place)", enqueueReason)
		}

		ctx := cmd.Context()
		st, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer st.close()

		res, err := st.jobs.Enqueue(ctx, placeID, reason, enqueuePriority)
		if err != nil {
			return err
		}

		if res.IsNew {
			zap.L().Info("job enqueued",
				zap.String("job_id", res.JobID),
				zap.Int64("place_id", placeID),
			)
		} else {
			zap.L().Info("existing job updated",
				zap.String("job_id", res.JobID),
				zap.Int64("place_id", placeID),
			)
		}
		fmt.Println(res.JobID)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueReason, "reason", "manual", "refresh reason (manual, scheduled, stale, new_place)")
	enqueueCmd.Flags().IntVar(&enqueuePriority, "priority", 0, "explicit priority (0 uses the reason's default band)")
	rootCmd.AddCommand(enqueueCmd)
}
