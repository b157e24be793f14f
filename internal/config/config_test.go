package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Scraper.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Scraper.RequestDelay.Std())
	assert.Equal(t, 30*time.Second, cfg.Scraper.WaitTimeout.Std())
	assert.Equal(t, 50, cfg.Batch.Size)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "json", cfg.Export.Format)
	assert.Equal(t, "timeshighereducation.com", cfg.Scraper.Domain)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
scraper:
  max_retries: 5
  request_delay: 500ms
batch:
  size: 25
browser:
  headless: false
export:
  format: csv
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Scraper.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Scraper.RequestDelay.Std())
	assert.Equal(t, 25, cfg.Batch.Size)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "csv", cfg.Export.Format)

	// Untouched settings keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Scraper.WaitTimeout.Std())
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch:\n  size: 25\n"), 0o644))

	t.Setenv("BATCH_SIZE", "10")
	t.Setenv("SCRAPER_REQUEST_DELAY", "3s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Batch.Size)
	assert.Equal(t, 3*time.Second, cfg.Scraper.RequestDelay.Std())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scraper:\n  request_delay: soon\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero retries", func(c *Config) { c.Scraper.MaxRetries = 0 }, "max_retries"},
		{"zero batch size", func(c *Config) { c.Batch.Size = 0 }, "batch.size"},
		{"bad format", func(c *Config) { c.Export.Format = "parquet" }, "export.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
