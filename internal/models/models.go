package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunPersisted RunStatus = "persisted"
	RunFailed    RunStatus = "failed"
)

// DownloadRecord describes one page written to the target directory.
type DownloadRecord struct {
	Filename  string    `json:"filename"`
	SourceURI string    `json:"sourceUri"`
	Path      string    `json:"path"`
	Modified  bool      `json:"modified"`
	Bytes     int64     `json:"bytes"`
	FetchedAt time.Time `json:"fetchedAt"`
}

type Run struct {
	ID         uuid.UUID  `json:"id"`
	SitemapURI string     `json:"sitemapUri"`
	TargetDir  string     `json:"targetDir"`
	MapPath    string     `json:"mapPath,omitempty"`
	Threshold  *time.Time `json:"threshold,omitempty"`
	Status     RunStatus  `json:"status"`
	Entries    int        `json:"entries"`
	Downloaded int        `json:"downloaded"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

type AuditKind string

const (
	AuditA11y  AuditKind = "a11y"
	AuditHTML5 AuditKind = "html5"
	AuditLink  AuditKind = "link"
)

type AuditRun struct {
	ID         uuid.UUID `json:"id"`
	Kind       AuditKind `json:"kind"`
	Files      int       `json:"files"`
	Findings   int       `json:"findings"`
	ReportPath string    `json:"reportPath,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewRun creates a running fetch run with a generated UUID.
func NewRun(sitemapURI, targetDir, mapPath string, threshold *time.Time) *Run {
	return &Run{
		ID:         uuid.New(),
		SitemapURI: sitemapURI,
		TargetDir:  targetDir,
		MapPath:    mapPath,
		Threshold:  threshold,
		Status:     RunRunning,
		StartedAt:  time.Now(),
	}
}

// NewAuditRun creates an audit run record with a generated UUID and timestamp.
func NewAuditRun(kind AuditKind) *AuditRun {
	return &AuditRun{
		ID:        uuid.New(),
		Kind:      kind,
		CreatedAt: time.Now(),
	}
}

// Finish marks the run as done, recording err as its failure reason.
func (r *Run) Finish(err error) {
	now := time.Now()
	r.FinishedAt = &now
	if err != nil {
		r.Status = RunFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunPersisted
}
