// Package checkpoint persists per-batch scrape results as JSON files so an
// interrupted run loses at most the batch in flight. A caller may inspect the
// latest checkpoints and skip already-completed URLs on restart.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/unidata/uni-rankings-scraper/internal/models"
)

type Store struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "checkpoint"),
	}, nil
}

// SaveBatch writes one batch result as batch_NNN_<id>.json and returns the
// file path.
func (s *Store) SaveBatch(result models.BatchResult, seq int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, fmt.Sprintf("batch_%03d_%s.json", seq, result.BatchID))
	if err := writeJSON(path, result); err != nil {
		return "", err
	}
	s.logger.Info("checkpointed batch",
		"batch", seq, "records", len(result.Records), "file", path)
	return path, nil
}

// SaveAll writes the aggregated record list with a timestamped filename.
func (s *Store) SaveAll(records []models.DetailRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("universities_detail_%s.json", time.Now().Format("20060102_150405"))
	path := filepath.Join(s.dir, name)
	if err := writeJSON(path, records); err != nil {
		return "", err
	}
	return path, nil
}

// List returns the batch checkpoint files in batch order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "batch_") && strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Load reads one batch checkpoint back.
func (s *Store) Load(path string) (models.BatchResult, error) {
	var result models.BatchResult

	data, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	return result, nil
}

// CompletedURLs returns every URL present in existing checkpoints, letting a
// caller skip finished work after an interrupt.
func (s *Store) CompletedURLs() (map[string]bool, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}

	done := make(map[string]bool)
	for _, path := range files {
		result, err := s.Load(path)
		if err != nil {
			s.logger.Warn("skipping unreadable checkpoint", "file", path, "error", err)
			continue
		}
		for _, rec := range result.Records {
			done[rec.URL] = true
		}
	}
	return done, nil
}

// writeJSON writes via a temp file and rename so a crash mid-write never
// leaves a truncated checkpoint.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, path)
}
