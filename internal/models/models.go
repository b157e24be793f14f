package models

// RankEntry is one parsed row of the rankings table. Nil pointers mean the
// source cell was empty, a sentinel ("n/a", dash) or unparsable.
type RankEntry struct {
	Rank                      *int     `json:"rank"`
	Name                      string   `json:"name"`
	Country                   string   `json:"country,omitempty"`
	DetailURL                 string   `json:"detail_url,omitempty"`
	OverallScore              *float64 `json:"overall_score"`
	TeachingScore             *float64 `json:"teaching_score"`
	ResearchScore             *float64 `json:"research_score"`
	CitationsScore            *float64 `json:"citations_score"`
	IndustryIncomeScore       *float64 `json:"industry_income_score"`
	InternationalOutlookScore *float64 `json:"international_outlook_score"`
}

// Subject is one entry of an institution's subject listing.
type Subject struct {
	Category string `json:"category,omitempty"`
	Name     string `json:"name"`
	Rank     string `json:"rank,omitempty"`
	Score    string `json:"score,omitempty"`
}

// DetailRecord is a tagged result for one institution detail page: either the
// extracted sections or an error marker, never both. Use NewDetailRecord /
// ErrorRecord instead of constructing it directly.
type DetailRecord struct {
	URL            string            `json:"url"`
	Name           string            `json:"name,omitempty"`
	RankingData    map[string]string `json:"ranking_data,omitempty"`
	KeyStats       map[string]string `json:"key_stats,omitempty"`
	Subjects       []Subject         `json:"subjects,omitempty"`
	AdditionalInfo map[string]string `json:"additional_info,omitempty"`
	Err            string            `json:"error,omitempty"`
}

// NewDetailRecord creates a success-variant record for url.
func NewDetailRecord(url string) DetailRecord {
	return DetailRecord{URL: url}
}

// ErrorRecord creates an error-variant record carrying only the URL and the
// failure message.
func ErrorRecord(url string, err error) DetailRecord {
	return DetailRecord{URL: url, Err: err.Error()}
}

// Failed reports whether the record is the error variant.
func (r DetailRecord) Failed() bool {
	return r.Err != ""
}

// CompositeRecord is a RankEntry enriched with the sections of a matched
// DetailRecord. The detail fields stay nil when no detail page was matched.
type CompositeRecord struct {
	RankEntry
	DetailedRankingData map[string]string `json:"detailed_ranking_data,omitempty"`
	KeyStats            map[string]string `json:"key_stats,omitempty"`
	Subjects            []Subject         `json:"subjects,omitempty"`
	AdditionalInfo      map[string]string `json:"additional_info,omitempty"`
}

// BatchResult is the outcome of one checkpointed batch of detail pages.
// Records preserves per-URL order, including error-variant records.
type BatchResult struct {
	BatchID   string         `json:"batch_id"`
	Records   []DetailRecord `json:"records"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}
