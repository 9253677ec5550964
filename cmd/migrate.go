package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer st.close()

		if err := st.places.Migrate(ctx); err != nil {
			return err
		}
		if err := st.jobs.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("migration complete", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
