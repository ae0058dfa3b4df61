package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/romangod6/html-audit/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id UUID PRIMARY KEY,
            sitemap_uri VARCHAR(2048) NOT NULL,
            target_dir TEXT NOT NULL,
            map_path TEXT,
            threshold TIMESTAMPTZ,
            status VARCHAR(32) NOT NULL,
            entries INTEGER NOT NULL DEFAULT 0,
            downloaded INTEGER NOT NULL DEFAULT 0,
            failed INTEGER NOT NULL DEFAULT 0,
            error TEXT,
            started_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
            finished_at TIMESTAMPTZ
        )`,
		`CREATE TABLE IF NOT EXISTS downloads (
            run_id UUID NOT NULL REFERENCES runs(id),
            filename VARCHAR(255) NOT NULL,
            source_uri VARCHAR(2048) NOT NULL,
            path TEXT NOT NULL,
            modified BOOLEAN NOT NULL DEFAULT FALSE,
            bytes BIGINT NOT NULL DEFAULT 0,
            fetched_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (run_id, filename)
        )`,
		`CREATE TABLE IF NOT EXISTS audit_runs (
            id UUID PRIMARY KEY,
            kind VARCHAR(16) NOT NULL,
            files INTEGER NOT NULL DEFAULT 0,
            findings INTEGER NOT NULL DEFAULT 0,
            report_path TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_run_id ON downloads(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}

	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.Run) error {
	query := `
        INSERT INTO runs (id, sitemap_uri, target_dir, map_path, threshold, status,
            entries, downloaded, failed, error, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.SitemapURI,
		run.TargetDir,
		run.MapPath,
		nullTime(run.Threshold),
		string(run.Status),
		run.Entries,
		run.Downloaded,
		run.Failed,
		run.Error,
		run.StartedAt,
		nullTime(run.FinishedAt),
	)

	return err
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.Run) error {
	query := `
        UPDATE runs SET
            status = $1,
            entries = $2,
            downloaded = $3,
            failed = $4,
            error = $5,
            finished_at = $6
        WHERE id = $7
    `

	_, err := s.db.ExecContext(ctx, query,
		string(run.Status),
		run.Entries,
		run.Downloaded,
		run.Failed,
		run.Error,
		nullTime(run.FinishedAt),
		run.ID,
	)

	return err
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `
        SELECT id, sitemap_uri, target_dir, map_path, threshold, status,
            entries, downloaded, failed, error, started_at, finished_at
        FROM runs
        WHERE id = $1
    `

	runs, err := s.queryRuns(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error) {
	query := `
        SELECT id, sitemap_uri, target_dir, map_path, threshold, status,
            entries, downloaded, failed, error, started_at, finished_at
        FROM runs
        ORDER BY started_at DESC
        LIMIT $1 OFFSET $2
    `

	return s.queryRuns(ctx, query, limit, offset)
}

func (s *PostgresStore) queryRuns(ctx context.Context, query string, args ...interface{}) ([]*models.Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run := &models.Run{}
		var status string
		var mapPath, errMsg sql.NullString
		var threshold, finishedAt sql.NullTime

		err := rows.Scan(
			&run.ID,
			&run.SitemapURI,
			&run.TargetDir,
			&mapPath,
			&threshold,
			&status,
			&run.Entries,
			&run.Downloaded,
			&run.Failed,
			&errMsg,
			&run.StartedAt,
			&finishedAt,
		)
		if err != nil {
			return nil, err
		}

		run.Status = models.RunStatus(status)
		run.MapPath = mapPath.String
		run.Error = errMsg.String
		run.Threshold = timePtr(threshold)
		run.FinishedAt = timePtr(finishedAt)

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (s *PostgresStore) CreateDownload(ctx context.Context, runID uuid.UUID, rec *models.DownloadRecord) error {
	query := `
        INSERT INTO downloads (run_id, filename, source_uri, path, modified, bytes, fetched_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (run_id, filename) DO UPDATE SET
            source_uri = EXCLUDED.source_uri,
            path = EXCLUDED.path,
            modified = EXCLUDED.modified,
            bytes = EXCLUDED.bytes,
            fetched_at = EXCLUDED.fetched_at
    `

	_, err := s.db.ExecContext(ctx, query,
		runID,
		rec.Filename,
		rec.SourceURI,
		rec.Path,
		rec.Modified,
		rec.Bytes,
		rec.FetchedAt,
	)

	return err
}

func (s *PostgresStore) ListDownloads(ctx context.Context, runID uuid.UUID) ([]*models.DownloadRecord, error) {
	query := `
        SELECT filename, source_uri, path, modified, bytes, fetched_at
        FROM downloads
        WHERE run_id = $1
        ORDER BY filename
    `

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.DownloadRecord
	for rows.Next() {
		rec := &models.DownloadRecord{}
		if err := rows.Scan(
			&rec.Filename,
			&rec.SourceURI,
			&rec.Path,
			&rec.Modified,
			&rec.Bytes,
			&rec.FetchedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *PostgresStore) CreateAuditRun(ctx context.Context, audit *models.AuditRun) error {
	query := `
        INSERT INTO audit_runs (id, kind, files, findings, report_path, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `

	_, err := s.db.ExecContext(ctx, query,
		audit.ID,
		string(audit.Kind),
		audit.Files,
		audit.Findings,
		audit.ReportPath,
		audit.CreatedAt,
	)

	return err
}

func (s *PostgresStore) ListAuditRuns(ctx context.Context, limit, offset int) ([]*models.AuditRun, error) {
	query := `
        SELECT id, kind, files, findings, report_path, created_at
        FROM audit_runs
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2
    `

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []*models.AuditRun
	for rows.Next() {
		audit := &models.AuditRun{}
		var kind string
		var reportPath sql.NullString

		if err := rows.Scan(
			&audit.ID,
			&kind,
			&audit.Files,
			&audit.Findings,
			&reportPath,
			&audit.CreatedAt,
		); err != nil {
			return nil, err
		}

		audit.Kind = models.AuditKind(kind)
		audit.ReportPath = reportPath.String
		audits = append(audits, audit)
	}

	return audits, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
