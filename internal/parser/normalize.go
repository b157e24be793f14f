package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	rankRangePattern   = regexp.MustCompile(`=?(\d+)`)
	nonNumericPattern  = regexp.MustCompile(`[^\d.]`)
	rankPrefixPattern  = regexp.MustCompile(`(?i)^(rank|position|#|no\.?)\s*`)
	ordinalPattern     = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)\b`)
	numberPattern      = regexp.MustCompile(`\d+(?:\.\d+)?`)
	nonAlphanumPattern = regexp.MustCompile(`[^a-z0-9\s]`)
	spacePattern       = regexp.MustCompile(`\s+`)
)

// scoreSentinels are the "no value" markers the site uses in score cells.
var scoreSentinels = map[string]struct{}{
	"":    {},
	"-":   {},
	"–":   {},
	"—":   {},
	"n/a": {},
	"na":  {},
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "for": {}, "in": {}, "of": {}, "the": {},
}

// ParseRank extracts a numeric rank from rank-cell text. Tie markers ("=57")
// are stripped and ranges ("401-500") resolve to their lower bound. Dash
// sentinels and empty text mean "no rank" and return (nil, nil); any other
// unparsable text returns an error so callers can treat the row as malformed.
func ParseRank(text string) (*int, error) {
	text = strings.TrimSpace(text)
	if _, sentinel := scoreSentinels[strings.ToLower(text)]; sentinel {
		return nil, nil
	}

	if strings.Contains(text, "-") {
		m := rankRangePattern.FindStringSubmatch(text)
		if m == nil {
			return nil, fmt.Errorf("unparsable rank range %q", text)
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("unparsable rank range %q", text)
		}
		return &n, nil
	}

	n, err := strconv.Atoi(strings.TrimPrefix(text, "="))
	if err != nil {
		return nil, fmt.Errorf("unparsable rank %q", text)
	}
	return &n, nil
}

// ParseScore extracts a numeric score from score-cell text. Sentinels ("n/a",
// dashes, empty) return (nil, nil); otherwise non-numeric characters are
// stripped before parsing, and a failure returns (nil, err) so the caller can
// log a warning while the value degrades to null.
func ParseScore(text string) (*float64, error) {
	text = strings.TrimSpace(text)
	if _, sentinel := scoreSentinels[strings.ToLower(text)]; sentinel {
		return nil, nil
	}

	cleaned := nonNumericPattern.ReplaceAllString(text, "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, fmt.Errorf("unparsable score %q", text)
	}
	return &v, nil
}

// NormalizeKey turns free-text labels into stable map keys: lowercase,
// stop words dropped, non-alphanumerics removed, spaces collapsed to
// underscores.
func NormalizeKey(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = nonAlphanumPattern.ReplaceAllString(label, "")

	words := strings.Fields(label)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, "_")
}

// CleanRank strips rank decorations ("Rank", "#", "No.") and ordinal suffixes
// from rank text, returning "" when nothing remains.
func CleanRank(text string) string {
	cleaned := rankPrefixPattern.ReplaceAllString(strings.TrimSpace(text), "")
	cleaned = ordinalPattern.ReplaceAllString(cleaned, "$1")
	cleaned = strings.TrimPrefix(cleaned, "=")
	return strings.TrimSpace(cleaned)
}

// CleanScore extracts the numeric part of score text, returning "" for the
// usual sentinels.
func CleanScore(text string) string {
	text = strings.TrimSpace(text)
	if _, sentinel := scoreSentinels[strings.ToLower(text)]; sentinel {
		return ""
	}
	if m := numberPattern.FindString(text); m != "" {
		return m
	}
	return text
}

// ClassifyNumeric decides whether numeric text is a score or a rank. The
// heuristic is deliberately lossy: an ordinal suffix ("5th", "101st") always
// means rank; otherwise any float in [0,100] is taken as a score, everything
// else as a rank. A bare "100" therefore classifies as a score even though it
// could be a rank. Returns kind "" when no number is present.
func ClassifyNumeric(text string) (kind string, value string) {
	text = strings.TrimSpace(text)
	if ordinalPattern.MatchString(text) {
		return "rank", CleanRank(text)
	}

	num := numberPattern.FindString(text)
	if num == "" {
		return "", ""
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return "", ""
	}
	if v >= 0 && v <= 100 {
		return "score", num
	}
	return "rank", num
}
