package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unidata/uni-rankings-scraper/internal/models"
)

func sampleBatch(id string, urls ...string) models.BatchResult {
	result := models.BatchResult{BatchID: id}
	for _, u := range urls {
		rec := models.NewDetailRecord(u)
		rec.Name = "University"
		result.Records = append(result.Records, rec)
		result.Succeeded++
	}
	return result
}

func TestSaveAndLoadBatch(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	batch := sampleBatch("abc-123", "https://example.test/a", "https://example.test/b")
	path, err := store.SaveBatch(batch, 1)
	require.NoError(t, err)
	assert.Equal(t, "batch_001_abc-123.json", filepath.Base(path))

	loaded, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, batch.BatchID, loaded.BatchID)
	assert.Equal(t, batch.Succeeded, loaded.Succeeded)
	require.Len(t, loaded.Records, 2)
	assert.Equal(t, "https://example.test/a", loaded.Records[0].URL)
}

func TestListReturnsBatchesInOrder(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		_, err := store.SaveBatch(sampleBatch("id"), i)
		require.NoError(t, err)
	}

	files, err := store.List()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "batch_001_id.json", filepath.Base(files[0]))
	assert.Equal(t, "batch_003_id.json", filepath.Base(files[2]))
}

func TestListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "universities_detail_x.json"), []byte("[]"), 0o644))
	_, err = store.SaveBatch(sampleBatch("id", "https://example.test/a"), 1)
	require.NoError(t, err)

	files, err := store.List()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestCompletedURLs(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveBatch(sampleBatch("one", "https://example.test/a", "https://example.test/b"), 1)
	require.NoError(t, err)
	_, err = store.SaveBatch(sampleBatch("two", "https://example.test/c"), 2)
	require.NoError(t, err)

	done, err := store.CompletedURLs()
	require.NoError(t, err)
	assert.Len(t, done, 3)
	assert.True(t, done["https://example.test/b"])
	assert.False(t, done["https://example.test/z"])
}

func TestCompletedURLsSkipsCorruptCheckpoint(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	_, err = store.SaveBatch(sampleBatch("good", "https://example.test/a"), 1)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch_002_bad.json"), []byte("{truncated"), 0o644))

	done, err := store.CompletedURLs()
	require.NoError(t, err)
	assert.Len(t, done, 1)
}

func TestSaveAllWritesAggregateFile(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	records := []models.DetailRecord{
		models.NewDetailRecord("https://example.test/a"),
		models.ErrorRecord("https://example.test/b", assert.AnError),
	}
	path, err := store.SaveAll(records)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://example.test/a")
	assert.Contains(t, string(data), assert.AnError.Error())

	// No stray temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
