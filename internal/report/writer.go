package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Report file names written by the auditors.
const (
	A11yReport  = "a11y-report.json"
	HTML5Report = "html5-report.json"
	LinksReport = "links-report.json"
)

// Names lists every report file name.
var Names = []string{A11yReport, HTML5Report, LinksReport}

// Write encodes data as indented JSON into dir/name, creating dir when
// needed, and returns the written path. With an empty dir the JSON goes
// to stdout and the returned path is empty.
func Write(data interface{}, dir, name string, stdout io.Writer) (string, error) {
	if dir == "" {
		if stdout == nil {
			stdout = os.Stdout
		}
		return "", encode(stdout, data)
	}

	dir = strings.TrimSuffix(dir, string(filepath.Separator))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	if err := encode(file, data); err != nil {
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Read returns the raw JSON of a previously written report. Only the
// known report names are accepted.
func Read(dir, name string) (json.RawMessage, error) {
	if !Known(name) {
		return nil, fmt.Errorf("unknown report %q", name)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("report %s is not valid JSON", name)
	}
	return json.RawMessage(data), nil
}

// Known reports whether name is one of the report files.
func Known(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

func encode(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
