package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/romangod6/html-audit/internal/models"
)

// Store keeps the history of fetch runs and audits.
type Store interface {
	Initialize() error
	Close() error

	// Run operations
	CreateRun(ctx context.Context, run *models.Run) error
	UpdateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error)

	// Download operations
	CreateDownload(ctx context.Context, runID uuid.UUID, rec *models.DownloadRecord) error
	ListDownloads(ctx context.Context, runID uuid.UUID) ([]*models.DownloadRecord, error)

	// Audit operations
	CreateAuditRun(ctx context.Context, audit *models.AuditRun) error
	ListAuditRuns(ctx context.Context, limit, offset int) ([]*models.AuditRun, error)
}

// Open returns the store for driver ("sqlite3" or "postgres") with its
// tables created. An empty driver means history is disabled and yields a
// nil Store.
func Open(driver, dsn string) (Store, error) {
	var (
		store Store
		err   error
	)

	switch driver {
	case "":
		return nil, nil
	case "sqlite3", "sqlite":
		store, err = NewSQLiteStore(dsn)
	case "postgres", "postgresql":
		store, err = NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Initialize(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize database tables: %w", err)
	}
	return store, nil
}
