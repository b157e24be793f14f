package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/unidata/uni-rankings-scraper/internal/browser"
	"github.com/unidata/uni-rankings-scraper/internal/checkpoint"
	"github.com/unidata/uni-rankings-scraper/internal/events"
	"github.com/unidata/uni-rankings-scraper/internal/fetcher"
	"github.com/unidata/uni-rankings-scraper/internal/models"
	"github.com/unidata/uni-rankings-scraper/internal/parser"
	"github.com/unidata/uni-rankings-scraper/internal/pipeline"
	"github.com/unidata/uni-rankings-scraper/internal/validator"
)

var (
	detailsInput  string
	detailsResume bool
)

var detailsCmd = &cobra.Command{
	Use:   "details",
	Short: "Scrape institution detail pages in checkpointed batches",
	Long:  "Reads a rankings JSON file, validates its detail URLs, scrapes each page and checkpoints results batch by batch. With --resume, URLs already present in checkpoints are skipped.",
	RunE:  runDetails,
}

func init() {
	detailsCmd.Flags().StringVarP(&detailsInput, "input", "i", "", "rankings JSON file (required)")
	detailsCmd.Flags().BoolVar(&detailsResume, "resume", false, "skip URLs already present in checkpoints")
	detailsCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(detailsCmd)
}

func runDetails(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	data, err := os.ReadFile(detailsInput)
	if err != nil {
		return fmt.Errorf("read rankings file: %w", err)
	}
	var entries []models.RankEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode rankings file: %w", err)
	}

	raw := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.DetailURL != "" {
			raw = append(raw, e.DetailURL)
		}
	}
	urls := validator.New().Filter(raw)
	slog.Info("validated detail urls", "candidates", len(raw), "valid", len(urls))

	store, err := checkpoint.NewStore(cfg.Batch.CheckpointDir)
	if err != nil {
		return err
	}

	if detailsResume {
		done, err := store.CompletedURLs()
		if err != nil {
			return fmt.Errorf("load checkpoints: %w", err)
		}
		remaining := urls[:0]
		for _, u := range urls {
			if !done[u] {
				remaining = append(remaining, u)
			}
		}
		slog.Info("resuming run", "completed", len(urls)-len(remaining), "remaining", len(remaining))
		urls = remaining
	}

	b, err := browser.New(browserOptions())
	if err != nil {
		return fmt.Errorf("initialize browser: %w", err)
	}
	defer b.Close()

	f := fetcher.New(func() (fetcher.Session, error) {
		return b.NewSession()
	}, fetcher.Options{
		MaxRetries:   cfg.Scraper.MaxRetries,
		RequestDelay: cfg.Scraper.RequestDelay.Std(),
		WaitTimeout:  cfg.Scraper.WaitTimeout.Std(),
	})
	defer f.Close()

	var publisher *events.Publisher
	if cfg.Redis.Enabled {
		client, err := events.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		publisher = events.NewPublisher(client)
		defer publisher.Close()
	}

	orch := pipeline.NewOrchestrator(f, parser.NewDetailParser(), store, publisher, cfg.Batch.Size)
	records, runErr := orch.Run(ctx, urls)

	if len(records) > 0 {
		path, err := store.SaveAll(records)
		if err != nil {
			return fmt.Errorf("save aggregated records: %w", err)
		}
		slog.Info("saved aggregated detail records", "records", len(records), "file", path)
	}

	return runErr
}
