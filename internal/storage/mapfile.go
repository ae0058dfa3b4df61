package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/romangod6/html-audit/internal/models"
)

// LoadMap reads the map file at path. A missing file yields an empty map.
func LoadMap(path string) (*models.SitemapMap, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.NewSitemapMap(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read map file %s: %w", path, err)
	}

	m := models.NewSitemapMap()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("malformed map file %s: %w", path, err)
	}
	m.Normalize()

	return m, nil
}

// MergeMap folds records into existing and returns it.
func MergeMap(existing *models.SitemapMap, records ...models.DownloadRecord) *models.SitemapMap {
	if existing == nil {
		existing = models.NewSitemapMap()
	}
	for _, rec := range records {
		existing.Add(rec)
	}
	return existing
}

// SaveMap writes m to path through a temporary file in the same directory
// that is renamed into place once fully written.
func SaveMap(path string, m *models.SitemapMap) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create map directory: %w", err)
	}

	if m == nil {
		m = models.NewSitemapMap()
	}
	m.Normalize()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode map: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".map-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary map file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write map file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync map file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close map file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set map file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace map file %s: %w", path, err)
	}

	return nil
}
