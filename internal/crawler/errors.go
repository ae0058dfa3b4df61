package crawler

import (
	"errors"
	"fmt"
)

// ErrMissingLocation is returned by the parser for a <url> without <loc>.
var ErrMissingLocation = errors.New("<loc> element not found")

// NotFoundError reports a sitemap or page that could not be retrieved:
// a non-2xx HTTP status, or a missing local file (StatusCode 0).
type NotFoundError struct {
	URI        string
	StatusCode int
	Err        error
}

func (e *NotFoundError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s not found: %v", e.URI, e.Err)
	}
	return fmt.Sprintf("%s not found - code: %d", e.URI, e.StatusCode)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// TransportError reports a network-level failure such as DNS resolution
// or a reset connection.
type TransportError struct {
	URI string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URI, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DownloadError reports a local filesystem failure while storing a page.
type DownloadError struct {
	URI string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("store %s: %v", e.URI, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
