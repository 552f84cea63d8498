package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spotloo/backend/internal/models"
)

// JSONStore writes backfill reports to a local JSON file.
type JSONStore struct {
	mu       sync.RWMutex
	filePath string
}

// NewJSONStore creates the parent directory of path if needed.
func NewJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return &JSONStore{filePath: path}, nil
}

// WriteReport replaces the file with report.
func (s *JSONStore) WriteReport(_ context.Context, report *models.BackfillReport) error {
	return s.save(report)
}

// PreviousReport returns the report currently in the file, or nil when no
// run has written one yet.
func (s *JSONStore) PreviousReport(_ context.Context) (*models.BackfillReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := os.ReadFile(s.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var report models.BackfillReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.filePath, err)
	}
	return &report, nil
}

// save writes data to a temp file and renames it over the target.
func (s *JSONStore) save(data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tempFile := s.filePath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		file.Close()
		os.Remove(tempFile)
		return err
	}

	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, s.filePath)
}
