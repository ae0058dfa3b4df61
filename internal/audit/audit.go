package audit

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/rodaine/table"

	"github.com/romangod6/html-audit/internal/models"
	"github.com/romangod6/html-audit/internal/report"
	"github.com/romangod6/html-audit/internal/storage"
)

// Auditor checks a set of HTML files and produces the report document.
type Auditor interface {
	Kind() models.AuditKind
	ReportName() string
	Audit(ctx context.Context, files []string) (*Result, error)
}

// Result is the outcome of one audit.
type Result struct {
	Kind  models.AuditKind
	Files []string
	// Counts holds the number of findings per file.
	Counts map[string]int
	// Errors holds files that could not be audited.
	Errors map[string]string
	// Report is the document written to the report file.
	Report interface{}
}

func newResult(kind models.AuditKind, files []string) *Result {
	return &Result{
		Kind:   kind,
		Files:  files,
		Counts: make(map[string]int, len(files)),
		Errors: make(map[string]string),
	}
}

// Findings returns the total number of findings.
func (r *Result) Findings() int {
	total := 0
	for _, n := range r.Counts {
		total += n
	}
	return total
}

// Options controls where Run writes the report and records history.
type Options struct {
	ReportDir string
	Stdout    io.Writer
	Store     storage.Store
	Logger    *log.Logger
}

// Run audits files with a, writes its report and records the audit in the
// history store when one is configured. It returns the report path, empty
// when the report went to stdout.
func Run(ctx context.Context, a Auditor, files []string, opts Options) (*Result, string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	logger.Info("starting audit", "kind", a.Kind(), "files", len(files))
	res, err := a.Audit(ctx, files)
	if err != nil {
		return nil, "", fmt.Errorf("%s audit failed: %w", a.Kind(), err)
	}

	path, err := report.Write(res.Report, opts.ReportDir, a.ReportName(), opts.Stdout)
	if err != nil {
		return res, "", err
	}
	if path != "" {
		logger.Info("report written", "path", path)
	}

	if opts.Store != nil {
		run := models.NewAuditRun(a.Kind())
		run.Files = len(files)
		run.Findings = res.Findings()
		run.ReportPath = path
		if err := opts.Store.CreateAuditRun(ctx, run); err != nil {
			logger.Error("failed to record audit", "kind", a.Kind(), "err", err)
		}
	}

	logger.Info("audit completed", "kind", a.Kind(), "findings", res.Findings(), "errors", len(res.Errors))
	return res, path, nil
}

// PrintSummary writes a per-file table of findings to w.
func PrintSummary(w io.Writer, res *Result) {
	tbl := table.New("File", "Findings", "Error").WithWriter(w)

	files := append([]string(nil), res.Files...)
	sort.Strings(files)
	for _, f := range files {
		tbl.AddRow(f, res.Counts[f], res.Errors[f])
	}
	tbl.Print()
}

// collector gathers per-file results from concurrent workers.
// Files without findings are only kept in byFile when keepEmpty is set.
type collector[T any] struct {
	mu        sync.Mutex
	res       *Result
	byFile    map[string][]T
	keepEmpty bool
}

func newCollector[T any](res *Result, keepEmpty bool) *collector[T] {
	return &collector[T]{res: res, byFile: make(map[string][]T), keepEmpty: keepEmpty}
}

func (c *collector[T]) add(file string, items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.res.Counts[file] = len(items)
	if len(items) > 0 || c.keepEmpty {
		if items == nil {
			items = []T{}
		}
		c.byFile[file] = items
	}
}

func (c *collector[T]) fail(file string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.res.Errors[file] = strings.TrimSpace(err.Error())
}
