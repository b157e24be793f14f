package parser

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/unidata/uni-rankings-scraper/internal/models"
)

// DetailParser extracts structured data from one institution's detail page.
// The page is split into five independent sections (name, ranking metrics,
// key stats, subjects, additional info); each section runs its own strategy
// cascade and fails without affecting the others. Only when every section
// fails does the whole record degrade to the error variant.
type DetailParser struct {
	logger *slog.Logger
}

func NewDetailParser() *DetailParser {
	return &DetailParser{
		logger: slog.Default().With("component", "detail_parser"),
	}
}

var (
	metaRankPattern  = regexp.MustCompile(`(?i)(?:ranked?\s*)?(?:#|no\.?\s*)(\d+)(?:st|nd|rd|th)?`)
	metricPhrases    = regexp.MustCompile(`(?i)(world university rankings?|world ranking|overall ranking|reputation ranking|impact ranking)\D{0,40}?(\d+)(st|nd|rd|th)?`)
	subjectsColonRE  = regexp.MustCompile(`(?i)subjects?(?:\s+taught)?\s*:\s*([^\n<]+)`)
	statPrefixRE     = regexp.MustCompile(`(?i)^(approx\.?|about|around|~)\s*`)
	subjectHeadingRE = regexp.MustCompile(`(?i)subject`)
)

// Parse never returns an error: per-section failures degrade the record
// locally and a page with nothing extractable becomes an error record.
func (p *DetailParser) Parse(html, pageURL string) models.DetailRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.ErrorRecord(pageURL, err)
	}

	rec := models.NewDetailRecord(pageURL)
	var sections int

	if name, src, ok := runStrategies(doc, p.nameStrategies()); ok {
		rec.Name = name
		sections++
		p.logger.Debug("extracted name", "url", pageURL, "strategy", src)
	}
	if ranking, src, ok := runStrategies(doc, p.rankingStrategies()); ok {
		rec.RankingData = ranking
		sections++
		p.logger.Debug("extracted ranking data", "url", pageURL, "strategy", src, "keys", len(ranking))
	}
	if stats, src, ok := runStrategies(doc, p.statsStrategies()); ok {
		rec.KeyStats = stats
		sections++
		p.logger.Debug("extracted key stats", "url", pageURL, "strategy", src, "keys", len(stats))
	}
	if subjects, src, ok := runStrategies(doc, p.subjectsStrategies()); ok {
		rec.Subjects = subjects
		sections++
		p.logger.Debug("extracted subjects", "url", pageURL, "strategy", src, "count", len(subjects))
	}
	if info, src, ok := runStrategies(doc, p.additionalInfoStrategies()); ok {
		rec.AdditionalInfo = info
		sections++
		p.logger.Debug("extracted additional info", "url", pageURL, "strategy", src)
	}

	if sections == 0 {
		p.logger.Error("no extractable content", "url", pageURL)
		return models.ErrorRecord(pageURL, errors.New("no extractable content in page"))
	}
	return rec
}

func (p *DetailParser) nameStrategies() []strategy[string] {
	return []strategy[string]{
		{"profile-header", func(doc *goquery.Document) (string, bool) {
			selectors := []string{
				"h1.profile-header__title",
				"h1.hero-title",
				".profile-header h1",
				".university-name",
				".institution-name",
				"h1",
			}
			for _, sel := range selectors {
				if name := strings.TrimSpace(doc.Find(sel).First().Text()); name != "" {
					return name, true
				}
			}
			return "", false
		}},
		{"page-title", func(doc *goquery.Document) (string, bool) {
			title := strings.TrimSpace(doc.Find("title").First().Text())
			if title == "" {
				return "", false
			}
			name := strings.TrimSpace(strings.SplitN(title, "|", 2)[0])
			return name, name != ""
		}},
	}
}

func (p *DetailParser) rankingStrategies() []strategy[map[string]string] {
	return []strategy[map[string]string]{
		{"ranking-cards", func(doc *goquery.Document) (map[string]string, bool) {
			data := map[string]string{}
			doc.Find(".ranking-card, .rank-card, .profile-ranking, .university-ranking").Each(func(_ int, card *goquery.Selection) {
				title := strings.TrimSpace(card.Find(".card-title, h3, h4, .ranking-title, .title").First().Text())
				if title == "" {
					title = "general"
				}
				key := NormalizeKey(title)
				if key == "" {
					key = "general"
				}
				if rank := CleanRank(card.Find(".rank, .ranking-number, .position, .rank-position").First().Text()); rank != "" {
					data[key+"_rank"] = rank
				}
				if score := CleanScore(card.Find(".score, .ranking-score, .points").First().Text()); score != "" {
					data[key+"_score"] = score
				}
				if year := strings.TrimSpace(card.Find(".year, .ranking-year, .period").First().Text()); year != "" {
					data[key+"_year"] = year
				}
			})
			return data, len(data) > 0
		}},
		{"individual-ranks", func(doc *goquery.Document) (map[string]string, bool) {
			patterns := []struct{ selector, key string }{
				{".world-rank", "world_rank"},
				{".overall-rank", "overall_rank"},
				{".reputation-rank", "reputation_rank"},
				{".global-rank", "global_rank"},
			}
			data := map[string]string{}
			for _, pat := range patterns {
				if rank := CleanRank(doc.Find(pat.selector).First().Text()); rank != "" {
					data[pat.key] = rank
				}
			}
			return data, len(data) > 0
		}},
		{"metric-phrases", func(doc *goquery.Document) (map[string]string, bool) {
			data := map[string]string{}
			for _, m := range metricPhrases.FindAllStringSubmatch(doc.Text(), -1) {
				key := NormalizeKey(m[1]) + "_rank"
				if _, seen := data[key]; !seen {
					data[key] = m[2]
				}
			}
			if title := doc.Find("title").First().Text(); len(data) == 0 && title != "" {
				if m := metaRankPattern.FindStringSubmatch(title); m != nil {
					data["meta_rank"] = m[1]
				}
			}
			return data, len(data) > 0
		}},
	}
}

func (p *DetailParser) statsStrategies() []strategy[map[string]string] {
	return []strategy[map[string]string]{
		{"stats-containers", func(doc *goquery.Document) (map[string]string, bool) {
			stats := map[string]string{}
			doc.Find(".key-stats, .university-stats, .profile-stats, .stats-container, .facts-figures").Each(func(_ int, container *goquery.Selection) {
				container.Find(".stat-item, .key-stat, .metric, .fact").Each(func(_ int, item *goquery.Selection) {
					name, value := parseStatItem(item)
					if key := NormalizeKey(name); key != "" && value != "" {
						stats[key] = value
					}
				})
			})
			return stats, len(stats) > 0
		}},
		{"definition-lists", func(doc *goquery.Document) (map[string]string, bool) {
			stats := map[string]string{}
			doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
				dts := dl.Find("dt")
				dds := dl.Find("dd")
				n := dts.Length()
				if dds.Length() < n {
					n = dds.Length()
				}
				for i := 0; i < n; i++ {
					name := strings.TrimSpace(dts.Eq(i).Text())
					value := strings.TrimSpace(dds.Eq(i).Text())
					if key := NormalizeKey(name); key != "" && value != "" {
						stats[key] = value
					}
				}
			})
			return stats, len(stats) > 0
		}},
		{"known-selectors", func(doc *goquery.Document) (map[string]string, bool) {
			patterns := []struct{ selector, key string }{
				{".student-count, .students", "total_students"},
				{".faculty-count, .staff", "faculty_count"},
				{".established, .founded, .year-established", "established"},
				{".campus-size, .campus", "campus_size"},
				{".international-students", "international_students"},
				{".student-faculty-ratio", "student_faculty_ratio"},
			}
			stats := map[string]string{}
			for _, pat := range patterns {
				if value := cleanStatValue(doc.Find(pat.selector).First().Text()); value != "" {
					stats[pat.key] = value
				}
			}
			return stats, len(stats) > 0
		}},
	}
}

// parseStatItem reads a label/value pair out of one stat element, trying
// dedicated child elements first, then colon-delimited text, then the
// first-two-lines layout.
func parseStatItem(item *goquery.Selection) (name, value string) {
	nameEl := item.Find(".stat-name, .label, .key, .metric-name").First()
	valueEl := item.Find(".stat-value, .value, .metric-value").First()
	if nameEl.Length() > 0 && valueEl.Length() > 0 {
		return strings.TrimSpace(nameEl.Text()), strings.TrimSpace(valueEl.Text())
	}

	text := strings.TrimSpace(item.Text())
	if before, after, found := strings.Cut(text, ":"); found {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) >= 2 {
		return lines[0], lines[1]
	}
	return "", ""
}

func cleanStatValue(text string) string {
	return strings.TrimSpace(statPrefixRE.ReplaceAllString(strings.TrimSpace(text), ""))
}

func (p *DetailParser) subjectsStrategies() []strategy[[]models.Subject] {
	return []strategy[[]models.Subject]{
		{"subjects-sections", func(doc *goquery.Document) ([]models.Subject, bool) {
			var subjects []models.Subject
			doc.Find(".subjects-section, .subject-rankings, .disciplines, .academic-areas, .subject-area").Each(func(_ int, container *goquery.Selection) {
				category := strings.TrimSpace(container.Find("h2, h3").First().Text())
				container.Find(".subject-item, .discipline, .subject-rank, .subject").Each(func(_ int, item *goquery.Selection) {
					if s, ok := parseSubjectItem(item, category); ok {
						subjects = append(subjects, s)
					}
				})
			})
			subjects = dedupeSubjects(subjects)
			return subjects, len(subjects) > 0
		}},
		{"heading-list", func(doc *goquery.Document) ([]models.Subject, bool) {
			var subjects []models.Subject
			doc.Find("h2, h3, h4").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
				if !subjectHeadingRE.MatchString(heading.Text()) {
					return true
				}
				list := heading.NextAllFiltered("ul, ol").First()
				if list.Length() == 0 {
					return true
				}
				category := strings.TrimSpace(heading.Text())
				list.Find("li").Each(func(_ int, li *goquery.Selection) {
					if name := strings.TrimSpace(li.Text()); name != "" {
						subjects = append(subjects, models.Subject{Category: category, Name: name})
					}
				})
				return len(subjects) == 0
			})
			subjects = dedupeSubjects(subjects)
			return subjects, len(subjects) > 0
		}},
		{"colon-split", func(doc *goquery.Document) ([]models.Subject, bool) {
			m := subjectsColonRE.FindStringSubmatch(doc.Text())
			if m == nil {
				return nil, false
			}
			var subjects []models.Subject
			for _, part := range strings.FieldsFunc(m[1], func(r rune) bool { return r == ',' || r == ';' }) {
				if name := strings.TrimSpace(part); name != "" {
					subjects = append(subjects, models.Subject{Name: name})
				}
			}
			subjects = dedupeSubjects(subjects)
			return subjects, len(subjects) > 0
		}},
	}
}

func parseSubjectItem(item *goquery.Selection, category string) (models.Subject, bool) {
	s := models.Subject{Category: category}

	nameEl := item.Find(".subject-name, .discipline-name, h3, h4, .name").First()
	if nameEl.Length() > 0 {
		s.Name = strings.TrimSpace(nameEl.Text())
	} else if text := strings.TrimSpace(item.Text()); text != "" {
		s.Name = strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	}
	if s.Name == "" {
		return s, false
	}

	s.Rank = CleanRank(item.Find(".subject-rank, .rank, .position").First().Text())
	s.Score = CleanScore(item.Find(".subject-score, .score").First().Text())
	return s, true
}

func dedupeSubjects(subjects []models.Subject) []models.Subject {
	seen := make(map[string]struct{}, len(subjects))
	unique := subjects[:0]
	for _, s := range subjects {
		key := strings.ToLower(s.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, s)
	}
	return unique
}

func (p *DetailParser) additionalInfoStrategies() []strategy[map[string]string] {
	return []strategy[map[string]string]{
		{"structural", func(doc *goquery.Document) (map[string]string, bool) {
			info := map[string]string{}
			if location := strings.TrimSpace(doc.Find(".location, .address, .country").First().Text()); location != "" {
				info["location"] = location
			}
			if website := findExternalWebsite(doc); website != "" {
				info["website"] = website
			}
			if desc := strings.TrimSpace(doc.Find(".description, .about, .overview").First().Text()); len(desc) > 50 {
				if len(desc) > 500 {
					desc = desc[:500] + "..."
				}
				info["description"] = desc
			}
			return info, len(info) > 0
		}},
		{"meta-tags", func(doc *goquery.Document) (map[string]string, bool) {
			info := map[string]string{}
			if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
				if desc = strings.TrimSpace(desc); desc != "" {
					info["description"] = desc
				}
			}
			return info, len(info) > 0
		}},
	}
}

func findExternalWebsite(doc *goquery.Document) string {
	var website string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.Contains(href, "www.") && !strings.Contains(href, "timeshighereducation") {
			website = href
			return false
		}
		return true
	})
	return website
}
