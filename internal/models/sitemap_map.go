package models

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// SitemapMap is the persisted association between downloaded files and the
// sitemap URIs they came from, plus the files flagged as modified.
type SitemapMap struct {
	URIs     map[string]string `json:"uris"`
	Modified []string          `json:"modified"`

	seen mapset.Set[string]
}

func NewSitemapMap() *SitemapMap {
	return &SitemapMap{
		URIs:     make(map[string]string),
		Modified: make([]string, 0),
	}
}

// Add folds a download record into the map. The filename key is
// overwritten, and the record's path is appended to Modified only when the
// record is flagged modified and the path is not already listed.
func (m *SitemapMap) Add(rec DownloadRecord) {
	if m.URIs == nil {
		m.URIs = make(map[string]string)
	}
	m.URIs[rec.Filename] = rec.SourceURI

	if !rec.Modified {
		return
	}
	// rebuild if Modified was changed directly
	if m.seen == nil || m.seen.Cardinality() != len(m.Modified) {
		m.seen = mapset.NewThreadUnsafeSet(m.Modified...)
	}
	if m.seen.Add(rec.Path) {
		m.Modified = append(m.Modified, rec.Path)
	}
}

// Normalize removes duplicate Modified entries while keeping their first
// occurrence order, and guarantees non-nil collections.
func (m *SitemapMap) Normalize() {
	if m.URIs == nil {
		m.URIs = make(map[string]string)
	}
	seen := mapset.NewThreadUnsafeSet[string]()
	modified := make([]string, 0, len(m.Modified))
	for _, p := range m.Modified {
		if seen.Add(p) {
			modified = append(modified, p)
		}
	}
	m.Modified = modified
	m.seen = seen
}

// FilenamesByURI inverts URIs. When a URI appears under several filenames
// the lexically smallest one wins so the answer is stable.
func (m *SitemapMap) FilenamesByURI() map[string]string {
	index := make(map[string]string, len(m.URIs))
	for name, u := range m.URIs {
		if cur, ok := index[u]; !ok || name < cur {
			index[u] = name
		}
	}
	return index
}
