// Package validator filters candidate detail-page URLs down to the ones that
// actually point at institution pages on the source site.
package validator

import (
	"log/slog"
	"net/url"
	"strings"
)

const (
	sourceDomain     = "timeshighereducation.com"
	detailPathMarker = "/world-university-rankings/"
)

type URLValidator struct {
	logger *slog.Logger
}

func New() *URLValidator {
	return &URLValidator{
		logger: slog.Default().With("component", "url_validator"),
	}
}

// Filter returns the subset of urls that are absolute http(s) URLs on the
// source domain with a detail-page path. Non-matching entries are dropped
// silently (debug-logged only); Filter never fails and is idempotent.
func (v *URLValidator) Filter(urls []string) []string {
	valid := make([]string, 0, len(urls))
	for _, raw := range urls {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}

		u, err := url.Parse(trimmed)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			v.logger.Debug("dropping non-absolute url", "url", trimmed)
			continue
		}

		host := u.Hostname()
		if host != sourceDomain && !strings.HasSuffix(host, "."+sourceDomain) {
			v.logger.Debug("dropping foreign-domain url", "url", trimmed)
			continue
		}

		if !strings.Contains(u.Path, detailPathMarker) {
			v.logger.Debug("dropping non-detail url", "url", trimmed)
			continue
		}

		valid = append(valid, trimmed)
	}
	return valid
}
