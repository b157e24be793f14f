package pipeline

import (
	"strings"

	"github.com/unidata/uni-rankings-scraper/internal/models"
)

// SummaryStats reports end-of-run totals and per-section coverage, favouring
// partial-success reporting over an all-or-nothing result.
type SummaryStats struct {
	Total              int `json:"total"`
	Succeeded          int `json:"succeeded"`
	Failed             int `json:"failed"`
	WithRankingData    int `json:"with_ranking_data"`
	WithKeyStats       int `json:"with_key_stats"`
	WithSubjects       int `json:"with_subjects"`
	WithAdditionalInfo int `json:"with_additional_info"`
	UniqueSubjects     int `json:"unique_subjects"`
}

func Summarize(records []models.DetailRecord) SummaryStats {
	stats := SummaryStats{Total: len(records)}
	subjects := map[string]struct{}{}

	for _, rec := range records {
		if rec.Failed() {
			stats.Failed++
			continue
		}
		stats.Succeeded++

		if len(rec.RankingData) > 0 {
			stats.WithRankingData++
		}
		if len(rec.KeyStats) > 0 {
			stats.WithKeyStats++
		}
		if len(rec.Subjects) > 0 {
			stats.WithSubjects++
			for _, s := range rec.Subjects {
				subjects[strings.ToLower(s.Name)] = struct{}{}
			}
		}
		if len(rec.AdditionalInfo) > 0 {
			stats.WithAdditionalInfo++
		}
	}

	stats.UniqueSubjects = len(subjects)
	return stats
}
