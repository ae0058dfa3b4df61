// internal/crawler/parser.go
package crawler

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/romangod6/html-audit/internal/models"
)

// W3C datetime layouts accepted in <lastmod> and for the modified threshold.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseTimestamp parses a W3C datetime. Values without a zone are UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// Parser streams <url> entries out of a sitemap document. It makes a single
// pass over the reader and cannot be restarted.
type Parser struct {
	decoder   *xml.Decoder
	threshold *time.Time
	err       error
}

// NewParser returns a parser over r. When threshold is non-nil, entries
// are marked modified if their lastmod is at or after it, or if they carry
// no usable lastmod.
func NewParser(r io.Reader, threshold *time.Time) *Parser {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Strict = false

	return &Parser{
		decoder:   decoder,
		threshold: threshold,
	}
}

// Next returns the next entry, io.EOF once the document is exhausted, or
// a parse error. After an error every call returns the same error.
func (p *Parser) Next() (models.SitemapEntry, error) {
	if p.err != nil {
		return models.SitemapEntry{}, p.err
	}

	for {
		tok, err := p.decoder.Token()
		if err == io.EOF {
			p.err = io.EOF
			return models.SitemapEntry{}, io.EOF
		}
		if err != nil {
			p.err = fmt.Errorf("error parsing sitemap: %w", err)
			return models.SitemapEntry{}, p.err
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "url" {
			continue
		}

		var u models.URL
		if err := p.decoder.DecodeElement(&u, &start); err != nil {
			p.err = fmt.Errorf("error parsing sitemap: %w", err)
			return models.SitemapEntry{}, p.err
		}

		return p.entry(u)
	}
}

func (p *Parser) entry(u models.URL) (models.SitemapEntry, error) {
	if u.Loc == nil || strings.TrimSpace(*u.Loc) == "" {
		p.err = ErrMissingLocation
		return models.SitemapEntry{}, p.err
	}

	entry := models.SitemapEntry{Loc: strings.TrimSpace(*u.Loc)}
	if u.LastMod != nil {
		if t, err := ParseTimestamp(*u.LastMod); err == nil {
			entry.LastModified = &t
		}
	}

	if p.threshold != nil {
		// unknown freshness counts as modified
		entry.Modified = entry.LastModified == nil || !entry.LastModified.Before(*p.threshold)
	}

	return entry, nil
}
