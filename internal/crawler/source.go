package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const defaultUserAgent = "html-audit/1.0"

// NewHTTPClient builds the client shared by the sitemap source and the
// content fetcher.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Source retrieves sitemap documents over HTTP(S) or from the local
// filesystem.
type Source struct {
	client    *http.Client
	userAgent string
}

func NewSource(client *http.Client, userAgent string) *Source {
	if client == nil {
		client = NewHTTPClient(30 * time.Second)
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Source{client: client, userAgent: userAgent}
}

// Fetch opens the sitemap at uri. The caller must close the returned body.
func (s *Source) Fetch(ctx context.Context, uri string) (io.ReadCloser, error) {
	if !isRemote(uri) {
		return openLocal(uri)
	}

	resp, err := get(ctx, s.client, uri, s.userAgent, "application/xml,text/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ValidateSitemapURI checks that uri looks like a sitemap location: it
// must mention "sitemap", and URLs must be http(s) with a host.
func ValidateSitemapURI(uri string) error {
	if uri == "" {
		return errors.New("sitemap URI is empty")
	}
	if !strings.Contains(strings.ToLower(uri), "sitemap") {
		return fmt.Errorf("%s isn't a valid sitemap URI", uri)
	}
	if !strings.Contains(uri, "://") {
		return nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%s isn't a valid sitemap URI: %w", uri, err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("%s isn't a valid sitemap URI: missing host", uri)
		}
	case "file":
	default:
		return fmt.Errorf("%s isn't a valid sitemap URI: unsupported scheme %q", uri, u.Scheme)
	}
	return nil
}

func isRemote(uri string) bool {
	lower := strings.ToLower(uri)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func openLocal(uri string) (io.ReadCloser, error) {
	path := uri
	if strings.HasPrefix(strings.ToLower(uri), "file://") {
		u, err := url.Parse(uri)
		if err != nil {
			return nil, fmt.Errorf("invalid file URI %s: %w", uri, err)
		}
		path = u.Path
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{URI: uri, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", uri, err)
	}
	return f, nil
}

// get performs a GET and returns the response when its status is 2xx.
func get(ctx context.Context, client *http.Client, uri, userAgent, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &TransportError{URI: uri, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{URI: uri, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, &NotFoundError{URI: uri, StatusCode: resp.StatusCode}
	}
	return resp, nil
}
