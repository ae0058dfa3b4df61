package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddSkipsDuplicateModified(t *testing.T) {
	m := NewSitemapMap()
	rec := DownloadRecord{Filename: "sitemap-0.html", SourceURI: "http://x/a", Path: "/pages/sitemap-0.html", Modified: true}

	m.Add(rec)
	m.Add(rec)
	m.Add(DownloadRecord{Filename: "sitemap-1.html", SourceURI: "http://x/b", Path: "/pages/sitemap-1.html"})

	assert.Equal(t, []string{"/pages/sitemap-0.html"}, m.Modified)
	assert.Len(t, m.URIs, 2)
}

func TestAddAfterDirectModifiedAppend(t *testing.T) {
	m := NewSitemapMap()
	m.Add(DownloadRecord{Filename: "sitemap-0.html", SourceURI: "http://x/a", Path: "/pages/sitemap-0.html", Modified: true})

	m.Modified = append(m.Modified, "/pages/sitemap-1.html")
	m.Add(DownloadRecord{Filename: "sitemap-1.html", SourceURI: "http://x/b", Path: "/pages/sitemap-1.html", Modified: true})

	assert.Equal(t, []string{"/pages/sitemap-0.html", "/pages/sitemap-1.html"}, m.Modified)
}

func TestAddAfterNormalizeAndAppend(t *testing.T) {
	m := &SitemapMap{Modified: []string{"/a", "/a"}}
	m.Normalize()
	m.Modified = append(m.Modified, "/b")

	m.Add(DownloadRecord{Filename: "sitemap-2.html", SourceURI: "http://x/b", Path: "/b", Modified: true})

	assert.Equal(t, []string{"/a", "/b"}, m.Modified)
	assert.Equal(t, "http://x/b", m.URIs["sitemap-2.html"])
}
