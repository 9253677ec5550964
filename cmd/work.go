package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	workLimit int
	workOnce  bool
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Run the refresh worker",
	Long:  "Claims pending refresh jobs and processes them. By default polls the queue until interrupted; --once processes a single batch and exits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer st.close()

		w, err := buildWorker(st)
		if err != nil {
			return err
		}

		limit := workLimit
		if limit <= 0 {
			limit = cfg.Queue.DefaultBatchLimit
		}

		if workOnce {
			res, err := w.RunBatch(ctx, limit)
			if err != nil {
				return err
			}
			zap.L().Info("batch finished",
				zap.Int("processed", res.Processed),
				zap.Int("succeeded", res.Succeeded),
				zap.Int("failed", res.Failed),
			)
			return nil
		}

		pollInterval := time.Duration(cfg.Worker.PollIntervalSecs) * time.Second
		err = w.Run(ctx, limit, pollInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	workCmd.Flags().IntVar(&workLimit, "limit", 0, "max jobs per batch (default from config)")
	workCmd.Flags().BoolVar(&workOnce, "once", false, "process one batch and exit")
	rootCmd.AddCommand(workCmd)
}
