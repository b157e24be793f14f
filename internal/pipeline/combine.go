package pipeline

import (
	"github.com/unidata/uni-rankings-scraper/internal/models"
)

// Combine left-joins rank entries with detail records on the detail URL. The
// output has exactly one CompositeRecord per rank entry, in input order;
// entries without a matching detail record pass through unenriched, and
// detail records with no matching entry are discarded. Inputs are not
// mutated.
func Combine(ranks []models.RankEntry, details []models.DetailRecord) []models.CompositeRecord {
	byURL := make(map[string]models.DetailRecord, len(details))
	for _, d := range details {
		if d.Failed() || d.URL == "" {
			continue
		}
		byURL[d.URL] = d
	}

	out := make([]models.CompositeRecord, 0, len(ranks))
	for _, r := range ranks {
		c := models.CompositeRecord{RankEntry: r}
		if d, ok := byURL[r.DetailURL]; ok && r.DetailURL != "" {
			c.DetailedRankingData = d.RankingData
			c.KeyStats = d.KeyStats
			c.Subjects = d.Subjects
			c.AdditionalInfo = d.AdditionalInfo
		}
		out = append(out, c)
	}
	return out
}
