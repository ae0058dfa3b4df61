package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/romangod6/html-audit/internal/models"
	"github.com/romangod6/html-audit/internal/storage"
)

type State string

const (
	StateIdle            State = "idle"
	StateFetchingSitemap State = "fetching_sitemap"
	StateParsingEntries  State = "parsing_entries"
	StateDownloading     State = "downloading_content"
	StateMergingMap      State = "merging_map"
	StatePersisted       State = "persisted"
	StateFailed          State = "failed"
)

const defaultConcurrency = 5

// SitemapSource opens a sitemap document.
type SitemapSource interface {
	Fetch(ctx context.Context, uri string) (io.ReadCloser, error)
}

// ContentFetcher downloads a single page into targetDir.
type ContentFetcher interface {
	Download(ctx context.Context, uri, targetDir string, seq int) (models.DownloadRecord, error)
}

type PipelineOptions struct {
	// RunID identifies the run in the history store; generated when zero.
	RunID      uuid.UUID
	SitemapURI string
	TargetDir  string
	// MapPath is the JSON map file to merge into. When empty the merged map
	// is written to Output instead.
	MapPath   string
	Threshold *time.Time
	// OnlyModified skips entries the parser did not mark modified.
	OnlyModified bool
	Concurrency  int
	// Rate limits downloads to this many requests per second; 0 disables it.
	Rate   float64
	Output io.Writer
	// Progress, when set, is called after every settled download.
	Progress func(done, failed int)
}

// Failure records a page that could not be downloaded.
type Failure struct {
	URI      string `json:"uri"`
	Filename string `json:"filename"`
	Error    string `json:"error"`
	Err      error  `json:"-"`
}

type Result struct {
	RunID     uuid.UUID               `json:"runId"`
	State     State                   `json:"state"`
	Entries   int                     `json:"entries"`
	Skipped   int                     `json:"skipped"`
	Downloads []models.DownloadRecord `json:"downloads"`
	Failures  []Failure               `json:"failures"`
	Map       *models.SitemapMap      `json:"map"`
}

// Pipeline fetches a sitemap, downloads every entry and merges the results
// into the map file.
type Pipeline struct {
	opts    PipelineOptions
	source  SitemapSource
	fetcher ContentFetcher
	store   storage.Store
	logger  *log.Logger
	limiter *rate.Limiter

	mu    sync.Mutex
	state State
}

// NewPipeline wires a pipeline. store may be nil to disable run history.
func NewPipeline(opts PipelineOptions, source SitemapSource, fetcher ContentFetcher, store storage.Store, logger *log.Logger) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if logger == nil {
		logger = log.Default()
	}

	p := &Pipeline{
		opts:    opts,
		source:  source,
		fetcher: fetcher,
		store:   store,
		logger:  logger,
		state:   StateIdle,
	}
	if opts.Rate > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}
	return p
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	p.logger.Debug("pipeline state", "state", s)
}

// Run executes the pipeline once. A non-nil error means the run failed and
// the map was not persisted; individual download failures are reported in
// Result.Failures instead.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	run := models.NewRun(p.opts.SitemapURI, p.opts.TargetDir, p.opts.MapPath, p.opts.Threshold)
	if p.opts.RunID != uuid.Nil {
		run.ID = p.opts.RunID
	}
	p.recordRun(ctx, run, true)

	res, err := p.run(ctx, run.ID)

	run.Entries = res.Entries
	run.Downloaded = len(res.Downloads)
	run.Failed = len(res.Failures)
	run.Finish(err)
	p.recordRun(context.WithoutCancel(ctx), run, false)

	if err != nil {
		p.setState(StateFailed)
	}
	res.State = p.State()
	return res, err
}

type outcome struct {
	uri      string
	filename string
	record   models.DownloadRecord
	err      error
}

func (p *Pipeline) run(ctx context.Context, runID uuid.UUID) (*Result, error) {
	res := &Result{
		RunID:     runID,
		Downloads: make([]models.DownloadRecord, 0),
		Failures:  make([]Failure, 0),
	}

	acc := models.NewSitemapMap()
	if p.opts.MapPath != "" {
		m, err := storage.LoadMap(p.opts.MapPath)
		if err != nil {
			return res, err
		}
		acc = m
	}
	res.Map = acc

	p.setState(StateFetchingSitemap)
	body, err := p.source.Fetch(ctx, p.opts.SitemapURI)
	if err != nil {
		return res, fmt.Errorf("failed to fetch sitemap: %w", err)
	}
	defer body.Close()

	results := make(chan outcome)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for o := range results {
			p.collect(ctx, runID, res, acc, o)
		}
	}()

	seq := newSequencer(acc)
	parser := NewParser(body, p.opts.Threshold)

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)

	p.setState(StateParsingEntries)
	var parseErr error
	for {
		entry, err := parser.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErr = err
			break
		}
		if err := ctx.Err(); err != nil {
			parseErr = err
			break
		}

		res.Entries++
		if p.opts.OnlyModified && p.opts.Threshold != nil && !entry.Modified {
			res.Skipped++
			p.logger.Debug("skipping unmodified entry", "uri", entry.Loc)
			continue
		}

		n := seq.assign(entry.Loc)
		g.Go(func() error {
			results <- p.download(ctx, entry, n)
			return nil
		})
	}

	p.setState(StateDownloading)
	g.Wait()
	close(results)
	<-collected

	if parseErr != nil {
		return res, parseErr
	}

	p.setState(StateMergingMap)
	if err := p.persist(acc); err != nil {
		return res, err
	}

	p.setState(StatePersisted)
	p.logger.Info("fetch completed",
		"entries", res.Entries,
		"downloaded", len(res.Downloads),
		"failed", len(res.Failures),
		"skipped", res.Skipped,
	)
	return res, nil
}

func (p *Pipeline) download(ctx context.Context, entry models.SitemapEntry, seq int) outcome {
	o := outcome{uri: entry.Loc, filename: Filename(seq)}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			o.err = &TransportError{URI: entry.Loc, Err: err}
			return o
		}
	}

	rec, err := p.fetcher.Download(ctx, entry.Loc, p.opts.TargetDir, seq)
	if err != nil {
		o.err = err
		return o
	}
	rec.Modified = entry.Modified
	o.record = rec
	return o
}

// collect folds one settled download into the run state. It only runs on
// the collector goroutine.
func (p *Pipeline) collect(ctx context.Context, runID uuid.UUID, res *Result, acc *models.SitemapMap, o outcome) {
	if o.err != nil {
		res.Failures = append(res.Failures, Failure{
			URI:      o.uri,
			Filename: o.filename,
			Error:    o.err.Error(),
			Err:      o.err,
		})
		p.logger.Warn("download failed", "uri", o.uri, "err", o.err)
	} else {
		acc.Add(o.record)
		res.Downloads = append(res.Downloads, o.record)
		p.logger.Info("page downloaded", "file", o.record.Path, "uri", o.uri, "modified", o.record.Modified)

		if p.store != nil {
			if err := p.store.CreateDownload(ctx, runID, &o.record); err != nil {
				p.logger.Error("failed to record download", "file", o.record.Filename, "err", err)
			}
		}
	}

	if p.opts.Progress != nil {
		p.opts.Progress(len(res.Downloads)+len(res.Failures), len(res.Failures))
	}
}

func (p *Pipeline) persist(m *models.SitemapMap) error {
	if p.opts.MapPath != "" {
		if err := storage.SaveMap(p.opts.MapPath, m); err != nil {
			return err
		}
		p.logger.Info("map file written", "path", p.opts.MapPath, "files", len(m.URIs), "modified", len(m.Modified))
		return nil
	}

	m.Normalize()
	enc := json.NewEncoder(p.opts.Output)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to write map: %w", err)
	}
	return nil
}

func (p *Pipeline) recordRun(ctx context.Context, run *models.Run, create bool) {
	if p.store == nil {
		return
	}

	var err error
	if create {
		err = p.store.CreateRun(ctx, run)
	} else {
		err = p.store.UpdateRun(ctx, run)
	}
	if err != nil {
		p.logger.Error("failed to record run", "run", run.ID, "err", err)
	}
}

var sequenceName = regexp.MustCompile(`^sitemap-(\d+)\.html$`)

// sequencer hands out file sequence numbers. URIs already present in the
// loaded map keep their number; new URIs continue after the largest one.
type sequencer struct {
	known map[string]int
	next  int
}

func newSequencer(m *models.SitemapMap) *sequencer {
	s := &sequencer{known: make(map[string]int)}

	for name := range m.URIs {
		if n, ok := sequenceOf(name); ok && n >= s.next {
			s.next = n + 1
		}
	}
	for uri, name := range m.FilenamesByURI() {
		if n, ok := sequenceOf(name); ok {
			s.known[uri] = n
		}
	}
	return s
}

func (s *sequencer) assign(uri string) int {
	if n, ok := s.known[uri]; ok {
		return n
	}
	n := s.next
	s.next++
	s.known[uri] = n
	return n
}

func sequenceOf(name string) (int, bool) {
	m := sequenceName.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
