package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// RunLogger is a leveled logger that writes to stderr and, when a log
// directory is configured, to a per-run log file as well.
type RunLogger struct {
	*log.Logger
	file *os.File
	path string
}

// NewLogger creates a logger for one command run. With an empty dir only
// stderr is used; otherwise lines are also appended to
// <dir>/<name>_<timestamp>.log.
func NewLogger(level, dir, name string) (*RunLogger, error) {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var (
		w    io.Writer = os.Stderr
		file *os.File
		path string
	)
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}

		sanitized := strings.ReplaceAll(strings.ToLower(name), " ", "_")
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		path = filepath.Join(dir, fmt.Sprintf("%s_%s.log", sanitized, timestamp))

		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, file)
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05.000",
		Prefix:          name,
	})

	return &RunLogger{Logger: logger, file: file, path: path}, nil
}

// Path returns the log file path, or "" when logging to stderr only.
func (l *RunLogger) Path() string {
	return l.path
}

func (l *RunLogger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
