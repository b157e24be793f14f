package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/unidata/uni-rankings-scraper/internal/models"
)

// ErrNoTable is returned when none of the table-location strategies matched.
var ErrNoTable = errors.New("rankings table not found")

// RankingsParser extracts RankEntry rows from rankings-page markup. It is
// stateless apart from its configuration and safe to reuse across pages.
type RankingsParser struct {
	logger *slog.Logger

	// minRows is the row threshold for the last-resort table strategy:
	// the first table with more rows than this is assumed to be the
	// rankings table.
	minRows int

	// baseURL resolves relative institution links.
	baseURL *url.URL
}

func NewRankingsParser() *RankingsParser {
	base, _ := url.Parse("https://www.timeshighereducation.com")
	return &RankingsParser{
		logger:  slog.Default().With("component", "rankings_parser"),
		minRows: 10,
		baseURL: base,
	}
}

// Parse extracts all well-formed rows from the rankings table. Malformed rows
// (missing cells, missing name, unparsable rank) are skipped with a warning
// and never abort the remaining rows.
func (p *RankingsParser) Parse(html string) ([]models.RankEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table, source, ok := runStrategies(doc, p.tableStrategies())
	if !ok {
		return nil, ErrNoTable
	}
	p.logger.Debug("located rankings table", "strategy", source)

	entries := make([]models.RankEntry, 0)
	rows := table.Find("tr")
	rows.Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header row
		}
		entry, err := p.parseRow(row)
		if err != nil {
			p.logger.Warn("skipping malformed row", "row", i, "error", err)
			return
		}
		entries = append(entries, entry)
	})

	p.logger.Info("parsed rankings table", "rows", rows.Length()-1, "entries", len(entries))
	return entries, nil
}

func (p *RankingsParser) tableStrategies() []strategy[*goquery.Selection] {
	return []strategy[*goquery.Selection]{
		{"known-id", func(doc *goquery.Document) (*goquery.Selection, bool) {
			sel := doc.Find("table#datatable-1").First()
			return sel, sel.Length() > 0
		}},
		{"known-class", func(doc *goquery.Document) (*goquery.Selection, bool) {
			sel := doc.Find("table.rankings-table, table.data-table").First()
			return sel, sel.Length() > 0
		}},
		{"min-rows", func(doc *goquery.Document) (*goquery.Selection, bool) {
			var found *goquery.Selection
			doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
				if t.Find("tr").Length() > p.minRows {
					found = t
					return false
				}
				return true
			})
			return found, found != nil
		}},
	}
}

func (p *RankingsParser) parseRow(row *goquery.Selection) (models.RankEntry, error) {
	var entry models.RankEntry

	cells := row.Find("td")
	if cells.Length() < 2 {
		return entry, fmt.Errorf("expected at least 2 cells, got %d", cells.Length())
	}

	rank, err := ParseRank(cells.Eq(0).Text())
	if err != nil {
		return entry, err
	}
	entry.Rank = rank

	nameCell := cells.Eq(1)
	nameLink := nameCell.Find("a.ranking-institution-title").First()
	if nameLink.Length() == 0 {
		nameLink = nameCell.Find("a").First()
	}
	entry.Name = strings.TrimSpace(nameLink.Text())
	if entry.Name == "" {
		return entry, errors.New("missing institution name")
	}

	if href, ok := nameLink.Attr("href"); ok {
		entry.DetailURL = p.resolveURL(href)
	}

	entry.Country = strings.TrimSpace(nameCell.Find("div.location a").First().Text())

	scores := []**float64{
		&entry.OverallScore,
		&entry.TeachingScore,
		&entry.ResearchScore,
		&entry.CitationsScore,
		&entry.IndustryIncomeScore,
		&entry.InternationalOutlookScore,
	}
	for i, target := range scores {
		cell := 2 + i
		if cell >= cells.Length() {
			break
		}
		text := cells.Eq(cell).Text()
		score, err := ParseScore(text)
		if err != nil {
			p.logger.Warn("could not parse score", "cell", cell, "text", strings.TrimSpace(text))
			continue
		}
		*target = score
	}

	return entry, nil
}

func (p *RankingsParser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		p.logger.Debug("skipping unparsable detail link", "href", href)
		return ""
	}
	return p.baseURL.ResolveReference(ref).String()
}
