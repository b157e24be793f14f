package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/unidata/uni-rankings-scraper/internal/browser"
	"github.com/unidata/uni-rankings-scraper/internal/fetcher"
	"github.com/unidata/uni-rankings-scraper/internal/parser"
)

var (
	rankingsURL  string
	rankingsHTML string
	rankingsOut  string
)

var rankingsCmd = &cobra.Command{
	Use:   "rankings",
	Short: "Scrape the rankings table and write it as JSON",
	Long:  "Fetches the rankings page with a real browser (or parses a saved HTML file with --html) and writes the parsed table to a JSON file.",
	RunE:  runRankings,
}

func init() {
	rankingsCmd.Flags().StringVar(&rankingsURL, "url", "", "rankings page URL (defaults to the configured URL)")
	rankingsCmd.Flags().StringVar(&rankingsHTML, "html", "", "parse a saved HTML file instead of fetching")
	rankingsCmd.Flags().StringVarP(&rankingsOut, "out", "o", "", "output file (defaults to <export-dir>/universities_rank_<timestamp>.json)")
	rootCmd.AddCommand(rankingsCmd)
}

func runRankings(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	var html string
	if rankingsHTML != "" {
		data, err := os.ReadFile(rankingsHTML)
		if err != nil {
			return fmt.Errorf("read html file: %w", err)
		}
		html = string(data)
	} else {
		url := rankingsURL
		if url == "" {
			url = cfg.Scraper.RankingsURL
		}

		b, err := browser.New(browserOptions())
		if err != nil {
			return fmt.Errorf("initialize browser: %w", err)
		}
		defer b.Close()

		f := fetcher.New(func() (fetcher.Session, error) {
			return b.NewSession()
		}, fetcher.Options{
			MaxRetries:     cfg.Scraper.MaxRetries,
			RequestDelay:   cfg.Scraper.RequestDelay.Std(),
			WaitTimeout:    cfg.Scraper.WaitTimeout.Std(),
			ScrollToBottom: true,
		})
		defer f.Close()

		html, err = f.Fetch(ctx, url)
		if err != nil {
			return fmt.Errorf("fetch rankings page: %w", err)
		}
	}

	entries, err := parser.NewRankingsParser().Parse(html)
	if err != nil {
		return fmt.Errorf("parse rankings: %w", err)
	}

	out := rankingsOut
	if out == "" {
		name := fmt.Sprintf("universities_rank_%s.json", time.Now().Format("20060102_150405"))
		out = filepath.Join(cfg.Export.Dir, name)
	}
	if err := writeJSONFile(out, entries); err != nil {
		return err
	}

	slog.Info("rankings scrape complete", "entries", len(entries), "file", out)
	return nil
}

func browserOptions() *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Timeout = cfg.Browser.Timeout.Std()
	opts.UserAgent = cfg.Browser.UserAgent
	opts.ViewportWidth = cfg.Browser.ViewportWidth
	opts.ViewportHeight = cfg.Browser.ViewportHeight
	opts.Locale = cfg.Browser.Locale
	opts.ScrollPause = cfg.Browser.ScrollPause.Std()
	opts.MaxScrolls = cfg.Browser.MaxScrolls
	return opts
}

func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return os.Rename(tmp, path)
}
