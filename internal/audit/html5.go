package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/romangod6/html-audit/internal/models"
	"github.com/romangod6/html-audit/internal/report"
)

// DefaultValidators are the public Nu validator instances probed in order.
var DefaultValidators = []string{
	"https://validator.w3.org/nu/",
	"https://checker.html5.org/",
	"https://html5.validator.nu/",
}

// ErrNoValidator is returned when no validator service answers.
var ErrNoValidator = errors.New("no HTML5 validator service available")

type HTML5Options struct {
	Client *http.Client
	// Service pins the validator; when empty the first answering entry of
	// Services is used.
	Service     string
	Services    []string
	ErrorsOnly  bool
	Concurrency int
	UserAgent   string
	Logger      *log.Logger
}

// HTML5Validator checks files against a Nu HTML validator web service.
type HTML5Validator struct {
	opts    HTML5Options
	service string
}

func NewHTML5Validator(opts HTML5Options) *HTML5Validator {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if len(opts.Services) == 0 {
		opts.Services = DefaultValidators
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "html-audit/1.0"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &HTML5Validator{opts: opts}
}

func (v *HTML5Validator) Kind() models.AuditKind { return models.AuditHTML5 }

func (v *HTML5Validator) ReportName() string { return report.HTML5Report }

// SelectService probes the candidate services concurrently and returns the
// first one, in list order, that answers 200.
func (v *HTML5Validator) SelectService(ctx context.Context) (string, error) {
	candidates := v.opts.Services
	if v.opts.Service != "" {
		candidates = []string{v.opts.Service}
	}

	ok := make([]bool, len(candidates))
	var g errgroup.Group
	for i, service := range candidates {
		i, service := i, service
		g.Go(func() error {
			ok[i] = v.probe(ctx, service)
			return nil
		})
	}
	g.Wait()

	for i, service := range candidates {
		if ok[i] {
			return service, nil
		}
	}
	return "", ErrNoValidator
}

func (v *HTML5Validator) probe(ctx context.Context, service string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, service, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", v.opts.UserAgent)

	resp, err := v.opts.Client.Do(req)
	if err != nil {
		v.opts.Logger.Debug("validator unavailable", "service", service, "err", err)
		return false
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (v *HTML5Validator) Audit(ctx context.Context, files []string) (*Result, error) {
	if v.service == "" {
		service, err := v.SelectService(ctx)
		if err != nil {
			return nil, err
		}
		v.service = service
	}
	v.opts.Logger.Info("using validator", "service", v.service)

	res := newResult(v.Kind(), files)
	messages := newCollector[models.ValidatorMessage](res, false)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.Concurrency)
	for _, file := range files {
		file := file
		g.Go(func() error {
			found, err := v.validate(gctx, file)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				v.opts.Logger.Error("validation failed", "file", file, "err", err)
				messages.fail(file, err)
				return nil
			}
			v.opts.Logger.Info("file validated", "file", file, "messages", len(found))
			messages.add(file, found)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Report = map[string]interface{}{"html5": messages.byFile}
	return res, nil
}

func (v *HTML5Validator) endpoint() (string, error) {
	u, err := url.Parse(v.service)
	if err != nil {
		return "", fmt.Errorf("invalid validator URL %s: %w", v.service, err)
	}
	q := u.Query()
	q.Set("out", "json")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (v *HTML5Validator) validate(ctx context.Context, file string) ([]models.ValidatorMessage, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	endpoint, err := v.endpoint()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/html; charset=utf-8")
	req.Header.Set("User-Agent", v.opts.UserAgent)

	resp, err := v.opts.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("validator returned %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("validator returned invalid JSON")
	}

	return parseMessages(body, file, v.opts.ErrorsOnly), nil
}

// parseMessages extracts the messages array of a Nu validator JSON response.
func parseMessages(body []byte, file string, errorsOnly bool) []models.ValidatorMessage {
	out := make([]models.ValidatorMessage, 0)
	gjson.GetBytes(body, "messages").ForEach(func(_, m gjson.Result) bool {
		typ := m.Get("type").String()
		if errorsOnly && typ != "error" {
			return true
		}

		msg := models.ValidatorMessage{
			Type:      typ,
			SubType:   m.Get("subType").String(),
			Message:   m.Get("message").String(),
			Extract:   m.Get("extract").String(),
			FirstLine: int(m.Get("firstLine").Int()),
			LastLine:  int(m.Get("lastLine").Int()),
			FirstCol:  int(m.Get("firstColumn").Int()),
			LastCol:   int(m.Get("lastColumn").Int()),
			Filename:  file,
		}
		if msg.FirstLine == 0 {
			msg.FirstLine = msg.LastLine
		}
		out = append(out, msg)
		return true
	})
	return out
}
