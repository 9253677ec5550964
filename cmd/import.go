package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/placedir/refresh-cli/internal/model"
)

var importEnqueue bool

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Bulk-load place listings from a CSV file",
	Long:  "Loads listings from a CSV with an id,slug,name,website,city,phone header. With --enqueue, each imported place also gets a new_place refresh job.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close()

		places, err := readPlacesCSV(f)
		if err != nil {
			return err
		}
		if len(places) == 0 {
			return fmt.Errorf("no rows in %s", args[0])
		}

		ctx := cmd.Context()
		st, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer st.close()

		n, err := st.places.ImportPlaces(ctx, places)
		if err != nil {
			return err
		}
		zap.L().Info("import complete", zap.Int64("imported", n))

		if importEnqueue {
			var queued int
			for _, p := range places {
				if _, err := st.jobs.Enqueue(ctx, p.ID, model.ReasonNewPlace, 0); err != nil {
					zap.L().Warn("enqueue after import failed",
						zap.Int64("place_id", p.ID),
						zap.Error(err),
					)
					continue
				}
				queued++
			}
			zap.L().Info("refresh jobs queued", zap.Int("queued", queued))
		}
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&importEnqueue, "enqueue", false, "queue a new_place refresh for each imported place")
	rootCmd.AddCommand(importCmd)
}

func readPlacesCSV(r io.Reader) ([]model.Place, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read csv header")
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"id", "slug", "name"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("csv missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var places []model.Place
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "read csv line %d", line)
		}

		id, err := strconv.ParseInt(field(row, "id"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid id %q", line, field(row, "id"))
		}
		slug := field(row, "slug")
		name := field(row, "name")
		if slug == "" || name == "" {
			return nil, fmt.Errorf("line %d: slug and name are required", line)
		}

		places = append(places, model.Place{
			ID:      id,
			Slug:    slug,
			Name:    name,
			Website: field(row, "website"),
			City:    field(row, "city"),
			Phone:   field(row, "phone"),
		})
	}
	return places, nil
}
