package audit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romangod6/html-audit/internal/models"
	"github.com/romangod6/html-audit/internal/storage"
)

type stubAuditor struct {
	err error
}

func (s stubAuditor) Kind() models.AuditKind { return models.AuditHTML5 }

func (s stubAuditor) ReportName() string { return "html5-report.json" }

func (s stubAuditor) Audit(ctx context.Context, files []string) (*Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	res := newResult(s.Kind(), files)
	c := newCollector[string](res, false)
	c.add(files[0], []string{"one", "two"})
	c.add(files[1], nil)
	c.fail(files[2], errors.New("unreadable\n"))
	res.Report = map[string]interface{}{"html5": c.byFile}
	return res, nil
}

func TestRunWritesReportAndRecordsHistory(t *testing.T) {
	store, err := storage.Open("sqlite3", filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	dir := t.TempDir()
	files := []string{"b.html", "a.html", "c.html"}
	res, path, err := Run(context.Background(), stubAuditor{}, files, Options{
		ReportDir: dir,
		Store:     store,
		Logger:    log.New(io.Discard),
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "html5-report.json"), path)
	assert.Equal(t, 2, res.Findings())
	assert.Equal(t, "unreadable", res.Errors["c.html"])

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"html5":{"b.html":["one","two"]}}`, string(raw))

	audits, err := store.ListAuditRuns(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, models.AuditHTML5, audits[0].Kind)
	assert.Equal(t, 3, audits[0].Files)
	assert.Equal(t, 2, audits[0].Findings)
}

func TestRunToStdout(t *testing.T) {
	var out bytes.Buffer
	_, path, err := Run(context.Background(), stubAuditor{}, []string{"a", "b", "c"}, Options{
		Stdout: &out,
		Logger: log.New(io.Discard),
	})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Contains(t, out.String(), `"html5"`)
}

func TestRunPropagatesAuditFailure(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Run(context.Background(), stubAuditor{err: ErrNoValidator}, nil, Options{
		ReportDir: dir,
		Logger:    log.New(io.Discard),
	})
	assert.ErrorIs(t, err, ErrNoValidator)
	assert.NoFileExists(t, filepath.Join(dir, "html5-report.json"))
}

func TestPrintSummary(t *testing.T) {
	res := newResult(models.AuditLink, []string{"z.html", "a.html"})
	res.Counts["z.html"] = 3
	res.Errors["a.html"] = "no such file"

	var out bytes.Buffer
	PrintSummary(&out, res)

	text := out.String()
	assert.Contains(t, text, "File")
	assert.Contains(t, text, "no such file")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("a.html")), bytes.Index(out.Bytes(), []byte("z.html")))
}
