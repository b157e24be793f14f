package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unidata/uni-rankings-scraper/internal/models"
)

func sampleRecords() []models.CompositeRecord {
	rank := 1
	overall := 98.5
	return []models.CompositeRecord{
		{
			RankEntry: models.RankEntry{
				Rank:         &rank,
				Name:         "Alpha University",
				Country:      "Alphaland",
				DetailURL:    "https://example.test/alpha",
				OverallScore: &overall,
			},
			KeyStats: map[string]string{"established": "1826"},
			Subjects: []models.Subject{{Name: "Physics", Rank: "12"}},
		},
		{
			RankEntry: models.RankEntry{Name: "Beta University"},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteJSON(sampleRecords(), Options{Dir: dir, Filename: "combined.json"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "combined.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []models.CompositeRecord
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Alpha University", got[0].Name)
	assert.Equal(t, "1826", got[0].KeyStats["established"])
	assert.Nil(t, got[1].Rank)
}

func TestWriteJSONTimestampPlaceholder(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteJSON(nil, Options{Dir: dir, Filename: "out_{timestamp}.json"})
	require.NoError(t, err)
	assert.NotContains(t, path, "{timestamp}")
	assert.True(t, strings.HasPrefix(filepath.Base(path), "out_"))
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteCSV(sampleRecords(), Options{Dir: dir, Filename: "combined.csv"})
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 records

	assert.Equal(t, csvHeader, rows[0])

	alpha := rows[1]
	assert.Equal(t, "1", alpha[0])
	assert.Equal(t, "Alpha University", alpha[1])
	assert.Equal(t, "98.5", alpha[4])
	assert.Contains(t, alpha[11], `"established":"1826"`)
	assert.Contains(t, alpha[12], "Physics")

	// Missing values stay empty, not "null".
	beta := rows[2]
	assert.Equal(t, "", beta[0])
	assert.Equal(t, "", beta[4])
	assert.Equal(t, "", beta[11])
}

func TestWriteXLSX(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteXLSX(sampleRecords(), Options{Dir: dir, Filename: "combined.xlsx"})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
