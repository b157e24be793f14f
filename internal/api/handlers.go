// Package api exposes the extraction layer over HTTP so other services can
// parse already-fetched markup without driving a browser themselves.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unidata/uni-rankings-scraper/internal/models"
	"github.com/unidata/uni-rankings-scraper/internal/parser"
	"github.com/unidata/uni-rankings-scraper/internal/pipeline"
	"github.com/unidata/uni-rankings-scraper/internal/validator"
)

type Handlers struct {
	rankings  *parser.RankingsParser
	details   *parser.DetailParser
	validator *validator.URLValidator
	logger    *slog.Logger
}

func NewHandlers(rankings *parser.RankingsParser, details *parser.DetailParser, v *validator.URLValidator, logger *slog.Logger) *Handlers {
	return &Handlers{
		rankings:  rankings,
		details:   details,
		validator: v,
		logger:    logger,
	}
}

// Routes builds the router for the parse endpoints.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/parse/rankings", h.ParseRankings)
	r.Post("/parse/detail", h.ParseDetail)
	r.Post("/validate", h.ValidateURLs)
	r.Post("/summary", h.Summary)
	r.Get("/health", h.Health)
	return r
}

// ParseRequest carries raw markup to one of the parse endpoints. URL is only
// required for detail pages, where it keys the resulting record.
type ParseRequest struct {
	HTML string `json:"html"`
	URL  string `json:"url,omitempty"`
}

// RankingsResponse is the parsed rankings table plus row counts.
type RankingsResponse struct {
	Entries []models.RankEntry `json:"entries"`
	Count   int                `json:"count"`
	Error   string             `json:"error,omitempty"`
}

// ParseRankings parses a rankings table out of posted markup.
func (h *Handlers) ParseRankings(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.HTML == "" {
		h.respondError(w, http.StatusBadRequest, "html is required")
		return
	}

	entries, err := h.rankings.Parse(req.HTML)
	if err != nil {
		h.logger.Error("rankings parse failed", "error", err)
		h.respondJSON(w, http.StatusUnprocessableEntity, RankingsResponse{Error: err.Error()})
		return
	}

	h.respondJSON(w, http.StatusOK, RankingsResponse{
		Entries: entries,
		Count:   len(entries),
	})
}

// ParseDetail parses an institution detail page out of posted markup. The
// response is always 200; extraction failures surface as the record's error
// field.
func (h *Handlers) ParseDetail(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.HTML == "" {
		h.respondError(w, http.StatusBadRequest, "html is required")
		return
	}

	record := h.details.Parse(req.HTML, req.URL)
	h.respondJSON(w, http.StatusOK, record)
}

// ValidateRequest carries candidate detail URLs.
type ValidateRequest struct {
	URLs []string `json:"urls"`
}

// ValidateResponse returns the accepted subset in input order.
type ValidateResponse struct {
	Valid   []string `json:"valid"`
	Dropped int      `json:"dropped"`
}

// ValidateURLs filters a URL list down to scrapeable detail URLs.
func (h *Handlers) ValidateURLs(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	valid := h.validator.Filter(req.URLs)
	h.respondJSON(w, http.StatusOK, ValidateResponse{
		Valid:   valid,
		Dropped: len(req.URLs) - len(valid),
	})
}

// SummaryRequest carries detail records for coverage statistics.
type SummaryRequest struct {
	Records []models.DetailRecord `json:"records"`
}

// Summary computes coverage statistics over posted detail records.
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.respondJSON(w, http.StatusOK, pipeline.Summarize(req.Records))
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
