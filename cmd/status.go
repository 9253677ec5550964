package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth by state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer st.close()

		stats, err := st.jobs.Stats(ctx)
		if err != nil {
			return err
		}

		if statusJSON {
			return json.NewEncoder(os.Stdout).Encode(stats)
		}
		fmt.Printf("pending      %d\n", stats.Pending)
		fmt.Printf("in_progress  %d\n", stats.InProgress)
		fmt.Printf("done         %d\n", stats.Done)
		fmt.Printf("failed       %d\n", stats.Failed)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}
