// Package export writes combined ranking datasets to files (JSON, CSV, XLSX)
// and to Postgres. Map-valued sections are JSON-encoded into single columns in
// the tabular formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/unidata/uni-rankings-scraper/internal/models"
)

// Options controls where files are written. Filename may contain a
// {timestamp} placeholder.
type Options struct {
	Dir      string
	Filename string
}

func (o Options) path(defaultName string) string {
	name := o.Filename
	if name == "" {
		name = defaultName
	}
	name = strings.ReplaceAll(name, "{timestamp}", time.Now().Format("20060102_150405"))
	return filepath.Join(o.Dir, name)
}

// WriteJSON writes the combined records as an indented JSON array and returns
// the file path.
func WriteJSON(records []models.CompositeRecord, opts Options) (string, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := opts.path("universities_combined_{timestamp}.json")
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal records: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("finalize export: %w", err)
	}

	slog.Default().With("component", "export").Info("wrote json export",
		"file", path, "records", len(records))
	return path, nil
}

var csvHeader = []string{
	"rank", "name", "country", "detail_url",
	"overall_score", "teaching_score", "research_score",
	"citations_score", "industry_income_score", "international_outlook_score",
	"detailed_ranking_data", "key_stats", "subjects", "additional_info",
}

// WriteCSV writes one row per record. Empty sections become empty cells
// rather than "null".
func WriteCSV(records []models.CompositeRecord, opts Options) (string, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := opts.path("universities_combined_{timestamp}.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, rec := range records {
		if err := w.Write(csvRow(rec)); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	slog.Default().With("component", "export").Info("wrote csv export",
		"file", path, "records", len(records))
	return path, nil
}

func csvRow(rec models.CompositeRecord) []string {
	return []string{
		formatRank(rec.Rank),
		rec.Name,
		rec.Country,
		rec.DetailURL,
		formatScore(rec.OverallScore),
		formatScore(rec.TeachingScore),
		formatScore(rec.ResearchScore),
		formatScore(rec.CitationsScore),
		formatScore(rec.IndustryIncomeScore),
		formatScore(rec.InternationalOutlookScore),
		encodeSection(rec.DetailedRankingData),
		encodeSection(rec.KeyStats),
		encodeSection(rec.Subjects),
		encodeSection(rec.AdditionalInfo),
	}
}

func formatRank(r *int) string {
	if r == nil {
		return ""
	}
	return strconv.Itoa(*r)
}

func formatScore(s *float64) string {
	if s == nil {
		return ""
	}
	return strconv.FormatFloat(*s, 'f', -1, 64)
}

// encodeSection JSON-encodes a map or slice section, or returns "" when the
// section is empty.
func encodeSection(v any) string {
	switch s := v.(type) {
	case map[string]string:
		if len(s) == 0 {
			return ""
		}
	case []models.Subject:
		if len(s) == 0 {
			return ""
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
