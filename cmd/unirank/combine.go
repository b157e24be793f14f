package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/unidata/uni-rankings-scraper/internal/export"
	"github.com/unidata/uni-rankings-scraper/internal/models"
	"github.com/unidata/uni-rankings-scraper/internal/pipeline"
)

var (
	combineRankings string
	combineDetails  string
	combineFormat   string
	combineOut      string
)

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Join rankings and detail datasets and export the result",
	Long:  "Left-joins a rankings JSON file with a detail-records JSON file on the detail URL and exports the combined dataset as json, csv, xlsx or to postgres.",
	RunE:  runCombine,
}

func init() {
	combineCmd.Flags().StringVar(&combineRankings, "rankings", "", "rankings JSON file (required)")
	combineCmd.Flags().StringVar(&combineDetails, "details", "", "detail records JSON file (required)")
	combineCmd.Flags().StringVarP(&combineFormat, "format", "f", "", "export format: json, csv, xlsx, postgres (defaults to configured format)")
	combineCmd.Flags().StringVarP(&combineOut, "out", "o", "", "output filename, may contain {timestamp}")
	combineCmd.MarkFlagRequired("rankings")
	combineCmd.MarkFlagRequired("details")
	rootCmd.AddCommand(combineCmd)
}

func runCombine(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	var entries []models.RankEntry
	if err := readJSONFile(combineRankings, &entries); err != nil {
		return err
	}
	var details []models.DetailRecord
	if err := readJSONFile(combineDetails, &details); err != nil {
		return err
	}

	combined := pipeline.Combine(entries, details)
	slog.Info("combined datasets", "entries", len(entries), "details", len(details), "combined", len(combined))

	format := combineFormat
	if format == "" {
		format = cfg.Export.Format
	}
	opts := export.Options{Dir: cfg.Export.Dir, Filename: combineOut}

	switch format {
	case "json":
		_, err := export.WriteJSON(combined, opts)
		return err
	case "csv":
		_, err := export.WriteCSV(combined, opts)
		return err
	case "xlsx":
		_, err := export.WriteXLSX(combined, opts)
		return err
	case "postgres":
		pg := cfg.Export.Postgres
		exporter, pool, err := export.Connect(ctx, export.PostgresConfig{
			Host:     pg.Host,
			Port:     pg.Port,
			User:     pg.User,
			Password: pg.Password,
			Database: pg.Database,
		})
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := exporter.CreateSchema(ctx); err != nil {
			return err
		}
		return exporter.ExportCombined(ctx, combined)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
