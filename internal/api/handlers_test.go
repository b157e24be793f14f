package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unidata/uni-rankings-scraper/internal/models"
	"github.com/unidata/uni-rankings-scraper/internal/parser"
	"github.com/unidata/uni-rankings-scraper/internal/validator"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	handlers := NewHandlers(
		parser.NewRankingsParser(),
		parser.NewDetailParser(),
		validator.New(),
		slog.Default(),
	)
	srv := httptest.NewServer(handlers.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestParseRankingsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	html := `<table id="datatable-1">
<tr><th>Rank</th><th>Name</th><th>Overall</th></tr>
<tr><td>1</td><td><a class="ranking-institution-title" href="/world-university-rankings/alpha">Alpha University</a></td><td>98.5</td></tr>
</table>`

	resp := postJSON(t, srv.URL+"/parse/rankings", ParseRequest{HTML: html})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body RankingsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "Alpha University", body.Entries[0].Name)
}

func TestParseRankingsNoTable(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/parse/rankings", ParseRequest{HTML: "<p>nothing</p>"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body RankingsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "not found")
}

func TestParseRankingsMissingHTML(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/parse/rankings", ParseRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParseDetailEndpoint(t *testing.T) {
	srv := newTestServer(t)

	html := `<html><head><title>Alpha University | Rankings</title></head>
<body><h1 class="profile-header__title">Alpha University</h1></body></html>`

	resp := postJSON(t, srv.URL+"/parse/detail", ParseRequest{
		HTML: html,
		URL:  "https://www.timeshighereducation.com/world-university-rankings/alpha",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec models.DetailRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.False(t, rec.Failed())
	assert.Equal(t, "Alpha University", rec.Name)
	assert.Equal(t, "https://www.timeshighereducation.com/world-university-rankings/alpha", rec.URL)
}

func TestParseDetailEmptyPageReturnsErrorRecord(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/parse/detail", ParseRequest{
		HTML: "<html><body></body></html>",
		URL:  "https://example.test/empty",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec models.DetailRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.True(t, rec.Failed())
}

func TestValidateEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/validate", ValidateRequest{URLs: []string{
		"https://www.timeshighereducation.com/world-university-rankings/alpha",
		"https://www.example.com/other",
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body ValidateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Valid, 1)
	assert.Equal(t, 1, body.Dropped)
}

func TestSummaryEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/summary", SummaryRequest{Records: []models.DetailRecord{
		{URL: "https://example.test/a", Name: "A", KeyStats: map[string]string{"established": "1826"}},
		models.ErrorRecord("https://example.test/b", assert.AnError),
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, float64(1), body["succeeded"])
	assert.Equal(t, float64(1), body["with_key_stats"])
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
