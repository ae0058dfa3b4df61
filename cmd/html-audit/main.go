package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/romangod6/html-audit/config"
	"github.com/romangod6/html-audit/internal/storage"
	"github.com/romangod6/html-audit/internal/utils"
)

// errUsage makes main print the command usage and exit successfully.
var errUsage = errors.New("missing required options")

type Globals struct {
	Config   string `help:"Path to configuration file." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." name:"log-level"`
	LogDir   string `help:"Directory for per-run log files." name:"log-dir" type:"path"`
}

type CLI struct {
	Globals

	Fetch FetchCmd `cmd:"" help:"Download the pages listed in a sitemap."`
	A11y  A11yCmd  `cmd:"" name:"a11y" help:"Audit HTML files for accessibility with pa11y."`
	HTML5 HTML5Cmd `cmd:"" name:"html5" help:"Validate HTML files with a Nu HTML validator."`
	Link  LinkCmd  `cmd:"" help:"Check the links of HTML files."`
	Serve ServeCmd `cmd:"" help:"Serve run history, the map file and reports over HTTP."`
}

// App carries what every command needs.
type App struct {
	ctx    context.Context
	cfg    *config.Config
	logger *log.Logger
	stdout io.Writer
	stderr io.Writer
}

// openStore opens the configured history store; nil when none is set.
func (a *App) openStore() (storage.Store, error) {
	store, err := storage.Open(a.cfg.Database.Driver, a.cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("html-audit"),
		kong.Description("Fetch the pages of a sitemap and audit them for accessibility, HTML5 validity and broken links."),
		kong.UsageOnError(),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return 1
	}

	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogDir != "" {
		cfg.Log.Dir = cli.LogDir
	}

	command := strings.Fields(kctx.Command())[0]
	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Log.Dir, command)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{
		ctx:    ctx,
		cfg:    cfg,
		logger: logger.Logger,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	err = kctx.Run(app)
	switch {
	case errors.Is(err, errUsage):
		kctx.PrintUsage(false)
		return 0
	case err != nil:
		logger.Error("command failed", "err", err)
		return 1
	}
	return 0
}
