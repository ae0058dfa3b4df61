package main

import (
	"context"
	"time"

	"github.com/romangod6/html-audit/internal/api"
	"github.com/romangod6/html-audit/internal/crawler"
)

type ServeCmd struct {
	Port int `help:"Port to listen on (default from config)."`
}

func (c *ServeCmd) Run(app *App) error {
	port := c.Port
	if port == 0 {
		port = app.cfg.Server.Port
	}

	store, err := app.openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	server := api.NewServer(api.Config{
		Port:      port,
		Store:     store,
		MapPath:   app.cfg.Paths.Map,
		ReportDir: app.cfg.Paths.Reports,
		PagesDir:  app.cfg.Paths.Pages,
		Fetch: func(ctx context.Context, opts crawler.PipelineOptions) error {
			_, err := runFetch(ctx, app, opts, false, store)
			return err
		},
		Logger: app.logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-app.ctx.Done():
	}

	app.logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
