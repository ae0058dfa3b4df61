package audit

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/gocolly/colly/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/romangod6/html-audit/internal/models"
	"github.com/romangod6/html-audit/internal/report"
)

// Link error messages, checked in this order.
const (
	MsgNotFound         = "Link page not found"
	MsgAbsoluteInternal = "Absolute internal URL"
	MsgInternalRedirect = "Internal redirect"
)

// linkSources are the elements and attributes whose URLs get checked.
var linkSources = []struct{ tag, attr string }{
	{"a", "href"},
	{"link", "href"},
	{"img", "src"},
	{"script", "src"},
	{"iframe", "src"},
}

type LinkOptions struct {
	// BaseURI is the site the audited pages belong to.
	BaseURI     string
	Verbose     bool
	Concurrency int
	Timeout     time.Duration
	// Rate limits link requests per second; 0 disables it.
	Rate      float64
	UserAgent string
	Logger    *log.Logger
}

// LinkChecker reports broken and badly formed links in HTML files.
type LinkChecker struct {
	opts      LinkOptions
	base      *url.URL
	collector *colly.Collector
	limiter   *rate.Limiter

	flight singleflight.Group
	mu     sync.Mutex
	cache  map[string]linkStatus
}

// ParseBaseURI validates a --base-uri value.
func ParseBaseURI(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("incorrect base uri %s: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("incorrect base uri %s", raw)
	}
	return u, nil
}

func NewLinkChecker(opts LinkOptions) (*LinkChecker, error) {
	base, err := ParseBaseURI(opts.BaseURI)
	if err != nil {
		return nil, err
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "html-audit/1.0"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	c := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(opts.Timeout)
	c.ParseHTTPErrorResponse = true
	c.MaxBodySize = 256 * 1024

	c.OnResponse(func(r *colly.Response) {
		r.Ctx.Put("status", strconv.Itoa(r.StatusCode))
		r.Ctx.Put("final", r.Request.URL.String())
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Ctx != nil {
			r.Ctx.Put("error", err.Error())
		}
	})

	lc := &LinkChecker{
		opts:      opts,
		base:      base,
		collector: c,
		cache:     make(map[string]linkStatus),
	}
	if opts.Rate > 0 {
		lc.limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}
	return lc, nil
}

func (lc *LinkChecker) Kind() models.AuditKind { return models.AuditLink }

func (lc *LinkChecker) ReportName() string { return report.LinksReport }

// link is one URL reference found in a page.
type link struct {
	raw      string
	resolved string
	tag      string
	attr     string
	html     string
}

type linkStatus struct {
	code  int
	final string
	err   string
}

// redirected reports whether the request for target ended on another URL.
func (s linkStatus) redirected(target string) bool {
	if s.final == "" {
		return false
	}
	return normalizeURL(s.final) != normalizeURL(target)
}

func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}

func (lc *LinkChecker) Audit(ctx context.Context, files []string) (*Result, error) {
	res := newResult(lc.Kind(), files)
	findings := newCollector[models.LinkFinding](res, false)

	for _, file := range files {
		found, err := lc.checkFile(ctx, file)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lc.opts.Logger.Error("link check failed", "file", file, "err", err)
			findings.fail(file, err)
			continue
		}
		lc.opts.Logger.Info("links checked", "file", file, "errors", len(found))
		findings.add(file, found)
	}

	res.Report = map[string]interface{}{"link": findings.byFile}
	return res, nil
}

func (lc *LinkChecker) checkFile(ctx context.Context, file string) ([]models.LinkFinding, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}

	links := lc.extract(doc)
	statuses := make([]linkStatus, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lc.opts.Concurrency)
	for i, l := range links {
		i, l := i, l
		g.Go(func() error {
			s, err := lc.status(gctx, l.resolved)
			if err != nil {
				return err
			}
			statuses[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.LinkFinding, 0)
	for i, l := range links {
		s := statuses[i]
		msg := lc.classify(l, s)
		if msg == "" {
			lc.opts.Logger.Debug("link passed", "url", l.raw)
			continue
		}
		lc.opts.Logger.Warn(msg, "url", l.raw, "file", file)

		finding := models.LinkFinding{
			Error: msg,
			HTML:  l.html,
			URL: models.LinkURL{
				Original: l.raw,
				Resolved: l.resolved,
			},
		}
		if s.redirected(l.resolved) {
			finding.URL.Redirected = s.final
		}
		if lc.opts.Verbose {
			finding.Verbose = &models.LinkVerbose{
				StatusCode: s.code,
				Internal:   lc.internal(l.resolved),
				TagName:    l.tag,
				Attribute:  l.attr,
			}
		}
		out = append(out, finding)
	}
	return out, nil
}

// extract returns the checkable links of doc in document order.
func (lc *LinkChecker) extract(doc *goquery.Document) []link {
	selector := make([]string, 0, len(linkSources))
	attrs := make(map[string]string, len(linkSources))
	for _, src := range linkSources {
		selector = append(selector, src.tag+"["+src.attr+"]")
		attrs[src.tag] = src.attr
	}

	var links []link
	doc.Find(strings.Join(selector, ", ")).Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		attr := attrs[tag]
		raw := strings.TrimSpace(s.AttrOr(attr, ""))
		if raw == "" || strings.HasPrefix(raw, "#") {
			return
		}

		ref, err := url.Parse(raw)
		if err != nil {
			return
		}
		resolved := lc.base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""

		links = append(links, link{
			raw:      raw,
			resolved: resolved.String(),
			tag:      tag,
			attr:     attr,
			html:     openingTag(s),
		})
	})
	return links
}

// classify returns the error message for a checked link, or "" when the
// link is fine.
func (lc *LinkChecker) classify(l link, s linkStatus) string {
	switch {
	case s.err != "":
		return s.err
	case s.code == http.StatusNotFound:
		return MsgNotFound
	case l.tag == "a" && strings.Contains(l.raw, lc.opts.BaseURI):
		return MsgAbsoluteInternal
	case lc.internal(l.resolved) && s.redirected(l.resolved):
		return MsgInternalRedirect
	case s.code >= 400:
		return "HTTP " + strconv.Itoa(s.code)
	}
	return ""
}

func (lc *LinkChecker) internal(resolved string) bool {
	u, err := url.Parse(resolved)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, lc.base.Host)
}

// status checks target once per checker; concurrent callers for the same
// URL share a single request.
func (lc *LinkChecker) status(ctx context.Context, target string) (linkStatus, error) {
	lc.mu.Lock()
	cached, ok := lc.cache[target]
	lc.mu.Unlock()
	if ok {
		return cached, nil
	}

	v, err, _ := lc.flight.Do(target, func() (interface{}, error) {
		s, err := lc.fetch(ctx, target)
		if err != nil {
			return linkStatus{}, err
		}
		lc.mu.Lock()
		lc.cache[target] = s
		lc.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return linkStatus{}, err
	}
	return v.(linkStatus), nil
}

// fetch requests target through the collector. Only context cancellation
// is returned as an error; request failures are part of the status.
func (lc *LinkChecker) fetch(ctx context.Context, target string) (linkStatus, error) {
	if lc.limiter != nil {
		if err := lc.limiter.Wait(ctx); err != nil {
			return linkStatus{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return linkStatus{}, err
	}

	cctx := colly.NewContext()
	err := lc.collector.Request(http.MethodGet, target, nil, cctx, nil)

	s := linkStatus{
		final: cctx.Get("final"),
		err:   cctx.Get("error"),
	}
	if code := cctx.Get("status"); code != "" {
		s.code, _ = strconv.Atoi(code)
	}
	if s.code == 0 && s.err == "" && err != nil && !errors.Is(err, colly.ErrAlreadyVisited) {
		s.err = err.Error()
	}
	return s, nil
}

// openingTag renders the start tag of the first node in s.
func openingTag(s *goquery.Selection) string {
	n := s.Get(0)
	if n == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("<" + n.Data)
	for _, a := range n.Attr {
		fmt.Fprintf(&b, ` %s="%s"`, a.Key, html.EscapeString(a.Val))
	}
	b.WriteString(">")
	return b.String()
}
