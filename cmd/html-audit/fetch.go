package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/rodaine/table"

	"github.com/romangod6/html-audit/internal/crawler"
	"github.com/romangod6/html-audit/internal/storage"
)

type FetchCmd struct {
	URI          string `help:"Sitemap URL or local sitemap file (required)." name:"uri"`
	Dir          string `help:"Directory to write pages into (required)." type:"path"`
	Map          string `help:"JSON map file to merge results into; printed to stdout when unset." type:"path"`
	LastMod      string `help:"Mark entries modified at or after this date (YYYY-MM-DD or W3C datetime)." name:"lastmod"`
	OnlyModified bool   `help:"Only download entries marked modified (requires --lastmod)." name:"only-modified"`
	Concurrency  int    `help:"Concurrent downloads (default from config)."`
	Render       bool   `help:"Render pages in headless Chrome before saving."`
	Progress     bool   `help:"Show a progress spinner on the terminal."`
}

func (c *FetchCmd) Run(app *App) error {
	if c.URI == "" || c.Dir == "" {
		return errUsage
	}
	if err := crawler.ValidateSitemapURI(c.URI); err != nil {
		return err
	}

	opts := crawler.PipelineOptions{
		SitemapURI:   c.URI,
		TargetDir:    c.Dir,
		MapPath:      c.Map,
		OnlyModified: c.OnlyModified,
		Concurrency:  c.Concurrency,
		Output:       app.stdout,
	}
	if opts.MapPath == "" {
		opts.MapPath = app.cfg.Paths.Map
	}
	// modified marks are only kept in a map file
	if c.LastMod != "" && opts.MapPath == "" {
		return errUsage
	}
	if c.LastMod != "" {
		t, err := crawler.ParseTimestamp(c.LastMod)
		if err != nil {
			return fmt.Errorf("invalid --lastmod: %w", err)
		}
		opts.Threshold = &t
	}

	store, err := app.openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	if c.Progress && isatty.IsTerminal(os.Stderr.Fd()) {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " fetching sitemap"
		s.Start()
		defer s.Stop()

		opts.Progress = func(done, failed int) {
			s.Lock()
			s.Suffix = fmt.Sprintf(" %d pages fetched, %d failed", done, failed)
			s.Unlock()
		}
	}

	res, err := runFetch(app.ctx, app, opts, c.Render, store)
	if res != nil && len(res.Failures) > 0 {
		tbl := table.New("URI", "File", "Error").WithWriter(app.stderr)
		for _, f := range res.Failures {
			tbl.AddRow(f.URI, f.Filename, f.Error)
		}
		tbl.Print()
	}
	return err
}

// runFetch builds a pipeline from the configuration and runs it once.
func runFetch(ctx context.Context, app *App, opts crawler.PipelineOptions, render bool, store storage.Store) (*crawler.Result, error) {
	cfg := app.cfg
	if opts.Concurrency <= 0 {
		opts.Concurrency = cfg.Fetch.Concurrency
	}
	if opts.Rate == 0 {
		opts.Rate = cfg.Fetch.Rate
	}

	client := crawler.NewHTTPClient(cfg.FetchTimeout())

	var renderer crawler.Renderer
	if render || cfg.Fetch.Render {
		chrome := crawler.NewChromeRenderer(cfg.Fetch.UserAgent, cfg.RenderWait(), cfg.FetchTimeout())
		defer chrome.Close()
		renderer = chrome
	}

	pipeline := crawler.NewPipeline(opts,
		crawler.NewSource(client, cfg.Fetch.UserAgent),
		crawler.NewFetcher(client, cfg.Fetch.UserAgent, renderer),
		store,
		app.logger,
	)
	return pipeline.Run(ctx)
}
