// Package pipeline drives the scrape end to end: batch orchestration over
// the acquisition and extraction layers, and the rankings/details join.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/unidata/uni-rankings-scraper/internal/checkpoint"
	"github.com/unidata/uni-rankings-scraper/internal/events"
	"github.com/unidata/uni-rankings-scraper/internal/models"
)

// Fetcher retrieves rendered markup for one URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// DetailParser turns detail-page markup into a record.
type DetailParser interface {
	Parse(html, url string) models.DetailRecord
}

// Orchestrator partitions URL lists into bounded batches and runs them
// strictly sequentially, checkpointing each batch before the next starts.
// A failed batch is logged and skipped; completed work is never lost.
type Orchestrator struct {
	fetcher   Fetcher
	parser    DetailParser
	store     *checkpoint.Store
	publisher *events.Publisher
	batchSize int
	logger    *slog.Logger
}

// NewOrchestrator wires the batch runner. publisher may be nil when progress
// events are disabled.
func NewOrchestrator(fetcher Fetcher, parser DetailParser, store *checkpoint.Store, publisher *events.Publisher, batchSize int) *Orchestrator {
	if batchSize < 1 {
		batchSize = 50
	}
	return &Orchestrator{
		fetcher:   fetcher,
		parser:    parser,
		store:     store,
		publisher: publisher,
		batchSize: batchSize,
		logger:    slog.Default().With("component", "orchestrator"),
	}
}

// Run processes urls in ceil(N/batchSize) ordered batches and returns the
// concatenated per-batch records. Per-URL failures become error-variant
// records; an unexpected batch-level failure drops only that batch.
func (o *Orchestrator) Run(ctx context.Context, urls []string) ([]models.DetailRecord, error) {
	if len(urls) == 0 {
		o.logger.Warn("no urls to process")
		return nil, nil
	}

	totalBatches := (len(urls) + o.batchSize - 1) / o.batchSize
	o.logger.Info("starting batch run",
		"urls", len(urls), "batch_size", o.batchSize, "batches", totalBatches)

	var all []models.DetailRecord
	for start := 0; start < len(urls); start += o.batchSize {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		end := start + o.batchSize
		if end > len(urls) {
			end = len(urls)
		}
		num := start/o.batchSize + 1

		result, err := o.runBatch(ctx, num, urls[start:end])
		if err != nil {
			if ctx.Err() != nil {
				// Interrupted: keep whatever this batch collected.
				all = append(all, result.Records...)
				return all, err
			}
			o.logger.Error("batch failed, continuing with next",
				"batch", num, "total", totalBatches, "error", err)
			o.publisher.BatchFailed(ctx, result.BatchID, num, err)
			continue
		}

		all = append(all, result.Records...)

		if _, err := o.store.SaveBatch(result, num); err != nil {
			o.logger.Error("failed to checkpoint batch", "batch", num, "error", err)
		}
		o.publisher.BatchCompleted(ctx, result, num)

		o.logger.Info("batch complete",
			"batch", num, "total", totalBatches,
			"succeeded", result.Succeeded, "failed", result.Failed)
	}

	stats := Summarize(all)
	o.logger.Info("batch run complete",
		"total", stats.Total,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"with_ranking_data", stats.WithRankingData,
		"with_key_stats", stats.WithKeyStats,
		"with_subjects", stats.WithSubjects,
		"with_additional_info", stats.WithAdditionalInfo)
	o.publisher.RunCompleted(ctx, stats.Total, stats.Succeeded, stats.Failed)

	return all, nil
}

// runBatch processes one batch sequentially. Panics inside the batch are
// converted to errors so a single bad batch cannot take down the run.
func (o *Orchestrator) runBatch(ctx context.Context, num int, urls []string) (result models.BatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch %d panicked: %v", num, r)
		}
	}()

	result.BatchID = uuid.New().String()

	for i, url := range urls {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		o.logger.Info("scraping detail page",
			"batch", num, "position", fmt.Sprintf("%d/%d", i+1, len(urls)), "url", url)

		rec := o.scrapeOne(ctx, url)
		result.Records = append(result.Records, rec)
		if rec.Failed() {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}

	return result, nil
}

// scrapeOne never lets a per-URL failure escape: retrieval errors degrade to
// an error-variant record.
func (o *Orchestrator) scrapeOne(ctx context.Context, url string) models.DetailRecord {
	html, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		o.logger.Error("retrieval failed", "url", url, "error", err)
		return models.ErrorRecord(url, err)
	}
	return o.parser.Parse(html, url)
}
