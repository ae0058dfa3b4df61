package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/romangod6/html-audit/internal/models"
	"github.com/romangod6/html-audit/internal/report"
)

const (
	DefaultPa11yBinary = "pa11y"
	DefaultStandard    = "WCAG2AA"
)

// pa11y exits with 2 when it ran fine but found issues.
const pa11yIssuesExitCode = 2

type Pa11yOptions struct {
	Binary      string
	Standard    string
	Ignore      []string
	Concurrency int
	Logger      *log.Logger
}

// Pa11y runs the pa11y command line tool over each file.
type Pa11y struct {
	opts Pa11yOptions
}

func NewPa11y(opts Pa11yOptions) *Pa11y {
	if opts.Binary == "" {
		opts.Binary = DefaultPa11yBinary
	}
	if opts.Standard == "" {
		opts.Standard = DefaultStandard
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Pa11y{opts: opts}
}

// ParseIgnore splits a semicolon separated list of issue types.
func ParseIgnore(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *Pa11y) Kind() models.AuditKind { return models.AuditA11y }

func (p *Pa11y) ReportName() string { return report.A11yReport }

func (p *Pa11y) Audit(ctx context.Context, files []string) (*Result, error) {
	if _, err := exec.LookPath(p.opts.Binary); err != nil {
		return nil, fmt.Errorf("pa11y executable not found: %w", err)
	}

	res := newResult(p.Kind(), files)
	issues := newCollector[models.A11yIssue](res, true)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for _, file := range files {
		file := file
		g.Go(func() error {
			found, err := p.run(gctx, file)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.opts.Logger.Error("accessibility check failed", "file", file, "err", err)
				issues.fail(file, err)
				return nil
			}
			p.opts.Logger.Info("accessibility checked", "file", file, "issues", len(found))
			issues.add(file, found)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Report = map[string]interface{}{
		"accessibility": issues.byFile,
		"errors":        res.Errors,
	}
	return res, nil
}

func (p *Pa11y) args(file string) []string {
	args := []string{"--reporter", "json", "--standard", p.opts.Standard}
	for _, t := range p.opts.Ignore {
		args = append(args, "--ignore", t)
	}
	return append(args, "file://"+file)
}

func (p *Pa11y) run(ctx context.Context, file string) ([]models.A11yIssue, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.opts.Binary, p.args(abs)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != pa11yIssuesExitCode {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return nil, fmt.Errorf("%w: %s", err, msg)
			}
			return nil, err
		}
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return []models.A11yIssue{}, nil
	}

	var issues []models.A11yIssue
	if err := json.Unmarshal(out, &issues); err != nil {
		return nil, fmt.Errorf("failed to parse pa11y output: %w", err)
	}
	return issues, nil
}
