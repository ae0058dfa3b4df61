package main

import (
	"github.com/romangod6/html-audit/internal/audit"
	"github.com/romangod6/html-audit/internal/files"
)

// AuditFlags are shared by the audit commands.
type AuditFlags struct {
	Path    string   `help:"Path to HTML files or an HTML file to audit (required)." type:"path"`
	Files   []string `arg:"" optional:"" help:"Additional HTML files or directories." type:"path"`
	Report  string   `help:"Directory to write the JSON report to; printed to stdout when unset." type:"path"`
	Map     string   `help:"JSON map file which holds modified files data (required with --lastmod)." type:"path"`
	LastMod bool     `help:"Audit only the modified files listed in the map." name:"lastmod"`
}

func (f *AuditFlags) files(app *App) ([]string, error) {
	if f.Path == "" {
		return nil, errUsage
	}
	mapPath := f.Map
	if mapPath == "" {
		mapPath = app.cfg.Paths.Map
	}
	if f.LastMod && mapPath == "" {
		return nil, errUsage
	}

	return files.Enumerate(files.Options{
		Path:         f.Path,
		Files:        f.Files,
		MapPath:      mapPath,
		ModifiedOnly: f.LastMod,
		Logger:       app.logger,
	})
}

func (f *AuditFlags) run(app *App, a audit.Auditor) error {
	targets, err := f.files(app)
	if err != nil {
		return err
	}

	reportDir := f.Report
	if reportDir == "" {
		reportDir = app.cfg.Paths.Reports
	}

	store, err := app.openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	res, _, err := audit.Run(app.ctx, a, targets, audit.Options{
		ReportDir: reportDir,
		Stdout:    app.stdout,
		Store:     store,
		Logger:    app.logger,
	})
	if err != nil {
		return err
	}

	audit.PrintSummary(app.stderr, res)
	return nil
}

type A11yCmd struct {
	AuditFlags

	Standard string `help:"Accessibility standard (default WCAG2AA)."`
	Ignore   string `help:"Issue types to ignore, separated by semicolons (notice;warning)."`
}

func (c *A11yCmd) Run(app *App) error {
	standard := c.Standard
	if standard == "" {
		standard = app.cfg.Audit.Standard
	}

	return c.run(app, audit.NewPa11y(audit.Pa11yOptions{
		Binary:   app.cfg.Audit.Pa11y,
		Standard: standard,
		Ignore:   audit.ParseIgnore(c.Ignore),
		Logger:   app.logger,
	}))
}

type HTML5Cmd struct {
	AuditFlags

	ErrorsOnly bool   `help:"Only report errors (no notices or warnings)." name:"errors-only"`
	Validator  string `help:"Validator service URL (default: first available public instance)."`
}

func (c *HTML5Cmd) Run(app *App) error {
	return c.run(app, audit.NewHTML5Validator(audit.HTML5Options{
		Service:    c.Validator,
		Services:   app.cfg.Audit.Validators,
		ErrorsOnly: c.ErrorsOnly,
		UserAgent:  app.cfg.Fetch.UserAgent,
		Logger:     app.logger,
	}))
}

type LinkCmd struct {
	AuditFlags

	BaseURI       string `help:"The base URL of the site being audited (required)." name:"base-uri"`
	ReportVerbose bool   `help:"Include status and element details in the report." name:"report-verbose"`
}

func (c *LinkCmd) Run(app *App) error {
	if c.BaseURI == "" {
		return errUsage
	}

	checker, err := audit.NewLinkChecker(audit.LinkOptions{
		BaseURI:     c.BaseURI,
		Verbose:     c.ReportVerbose,
		Concurrency: app.cfg.Audit.LinkConcurrency,
		Timeout:     app.cfg.LinkTimeout(),
		Rate:        app.cfg.Fetch.Rate,
		UserAgent:   app.cfg.Fetch.UserAgent,
		Logger:      app.logger,
	})
	if err != nil {
		return err
	}
	return c.run(app, checker)
}
