package crawler

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romangod6/html-audit/internal/models"
)

func collectEntries(t *testing.T, p *Parser) ([]models.SitemapEntry, error) {
	t.Helper()
	var entries []models.SitemapEntry
	for {
		entry, err := p.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
}

func mustTime(t *testing.T, s string) *time.Time {
	t.Helper()
	ts, err := ParseTimestamp(s)
	require.NoError(t, err)
	return &ts
}

const threeEntrySitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>http://x/a.html</loc><lastmod>2024-01-01</lastmod></url>
  <url><loc> http://x/b.html </loc><lastmod>2024-06-01</lastmod></url>
  <url><loc>http://x/c.html</loc></url>
</urlset>`

func TestParserWithoutThresholdLeavesEntriesUnmarked(t *testing.T) {
	entries, err := collectEntries(t, NewParser(strings.NewReader(threeEntrySitemap), nil))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "http://x/a.html", entries[0].Loc)
	assert.Equal(t, "http://x/b.html", entries[1].Loc)
	for _, e := range entries {
		assert.False(t, e.Modified, e.Loc)
	}
	require.NotNil(t, entries[0].LastModified)
	assert.Nil(t, entries[2].LastModified)
}

func TestParserThresholdIsInclusive(t *testing.T) {
	entries, err := collectEntries(t, NewParser(strings.NewReader(threeEntrySitemap), mustTime(t, "2024-06-01")))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.False(t, entries[0].Modified, "older than threshold")
	assert.True(t, entries[1].Modified, "equal to threshold")
	assert.True(t, entries[2].Modified, "no lastmod")
}

func TestParserMissingLastmodAlwaysModified(t *testing.T) {
	doc := `<urlset><url><loc>http://x/a.html</loc></url></urlset>`
	for _, threshold := range []string{"1970-01-01", "2999-12-31"} {
		entries, err := collectEntries(t, NewParser(strings.NewReader(doc), mustTime(t, threshold)))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Modified, threshold)
	}
}

func TestParserMissingLocationAbortsSequence(t *testing.T) {
	doc := `<urlset>
  <url><loc>http://x/a.html</loc></url>
  <url><lastmod>2024-01-01</lastmod></url>
  <url><loc>http://x/c.html</loc></url>
</urlset>`
	p := NewParser(strings.NewReader(doc), nil)

	first, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "http://x/a.html", first.Loc)

	_, err = p.Next()
	assert.True(t, errors.Is(err, ErrMissingLocation))

	_, err = p.Next()
	assert.True(t, errors.Is(err, ErrMissingLocation), "parser must stay failed")
}

func TestParserIgnoresNestedExtensionLocs(t *testing.T) {
	doc := `<urlset xmlns:image="http://www.google.com/schemas/sitemap-image/1.1">
  <url>
    <image:image><image:loc>http://x/img.png</image:loc></image:image>
  </url>
</urlset>`
	_, err := collectEntries(t, NewParser(strings.NewReader(doc), nil))
	assert.ErrorIs(t, err, ErrMissingLocation)
}

func TestParserMalformedXML(t *testing.T) {
	_, err := collectEntries(t, NewParser(strings.NewReader(`<urlset><url><loc>http://x</loc>`), nil))
	assert.Error(t, err)
}

func TestParserUnparseableLastmodCountsAsModified(t *testing.T) {
	doc := `<urlset><url><loc>http://x/a.html</loc><lastmod>yesterday</lastmod></url></urlset>`
	entries, err := collectEntries(t, NewParser(strings.NewReader(doc), mustTime(t, "2024-01-01")))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].LastModified)
	assert.True(t, entries[0].Modified)
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]time.Time{
		"2024-06-01":                time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		"2024-06-01T10:30:00Z":      time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		"2024-06-01T12:30:00+02:00": time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		"2024-06-01T10:30+00:00":    time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		"2024-06-01T10:30:00.5Z":    time.Date(2024, 6, 1, 10, 30, 0, 500000000, time.UTC),
	}
	for in, want := range cases {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s: got %s", in, got)
	}

	_, err := ParseTimestamp("not a date")
	assert.Error(t, err)
}
