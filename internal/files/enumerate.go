package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/romangod6/html-audit/internal/storage"
)

// Options selects the HTML files an audit runs over.
type Options struct {
	// Path is a file or a directory; directories are listed one level deep.
	Path  string
	Files []string
	// MapPath and ModifiedOnly select the modified list of a map file
	// instead of Path and Files.
	MapPath      string
	ModifiedOnly bool
	Logger       *log.Logger
}

// Enumerate returns the absolute, sorted and de-duplicated HTML files
// selected by opts. Non-HTML files are skipped with a warning.
func Enumerate(opts Options) ([]string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	if opts.ModifiedOnly {
		if opts.MapPath == "" {
			return nil, errors.New("a map file is required to list modified files")
		}
		m, err := storage.LoadMap(opts.MapPath)
		if err != nil {
			return nil, err
		}
		return collect(m.Modified, logger)
	}

	if opts.Path == "" {
		return nil, errors.New("path is required")
	}

	var candidates []string
	for _, p := range append([]string{opts.Path}, opts.Files...) {
		found, err := expand(p)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, found...)
	}
	return collect(candidates, logger)
}

func expand(path string) ([]string, error) {
	path = strings.TrimSuffix(path, string(filepath.Separator))
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}
	found := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		found = append(found, filepath.Join(path, e.Name()))
	}
	return found, nil
}

func collect(paths []string, logger *log.Logger) ([]string, error) {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, p := range paths {
		if !IsHTML(p) {
			logger.Warn("skipping non-HTML file", "file", p)
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		set.Add(abs)
	}

	out := set.ToSlice()
	sort.Strings(out)
	return out, nil
}

// IsHTML reports whether path has an .html or .htm extension.
func IsHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}
