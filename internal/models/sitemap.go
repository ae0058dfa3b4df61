// internal/models/sitemap.go
package models

import "time"

// URL is the decoded form of a single <url> element in a sitemap.
// Pointers distinguish an absent child element from an empty one.
type URL struct {
	Loc     *string `xml:"loc"`
	LastMod *string `xml:"lastmod"`
}

// SitemapEntry is one <url> entry as yielded by the sitemap parser.
type SitemapEntry struct {
	Loc          string     `json:"loc"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	Modified     bool       `json:"modified"`
}
