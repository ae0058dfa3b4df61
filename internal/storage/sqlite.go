package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/romangod6/html-audit/internal/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// sqlite serialises writers; one connection avoids "database is locked"
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            sitemap_uri TEXT NOT NULL,
            target_dir TEXT NOT NULL,
            map_path TEXT,
            threshold DATETIME,
            status TEXT NOT NULL,
            entries INTEGER NOT NULL DEFAULT 0,
            downloaded INTEGER NOT NULL DEFAULT 0,
            failed INTEGER NOT NULL DEFAULT 0,
            error TEXT,
            started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            finished_at DATETIME
        )`,
		`CREATE TABLE IF NOT EXISTS downloads (
            run_id TEXT NOT NULL,
            filename TEXT NOT NULL,
            source_uri TEXT NOT NULL,
            path TEXT NOT NULL,
            modified BOOLEAN NOT NULL DEFAULT 0,
            bytes INTEGER NOT NULL DEFAULT 0,
            fetched_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (run_id, filename),
            FOREIGN KEY(run_id) REFERENCES runs(id)
        )`,
		`CREATE TABLE IF NOT EXISTS audit_runs (
            id TEXT PRIMARY KEY,
            kind TEXT NOT NULL,
            files INTEGER NOT NULL DEFAULT 0,
            findings INTEGER NOT NULL DEFAULT 0,
            report_path TEXT,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
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

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.Run) error {
	query := `
        INSERT INTO runs (id, sitemap_uri, target_dir, map_path, threshold, status,
            entries, downloaded, failed, error, started_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	_, err := s.db.ExecContext(ctx, query,
		run.ID.String(),
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

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.Run) error {
	query := `
        UPDATE runs SET
            status = ?,
            entries = ?,
            downloaded = ?,
            failed = ?,
            error = ?,
            finished_at = ?
        WHERE id = ?
    `

	_, err := s.db.ExecContext(ctx, query,
		string(run.Status),
		run.Entries,
		run.Downloaded,
		run.Failed,
		run.Error,
		nullTime(run.FinishedAt),
		run.ID.String(),
	)

	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `
        SELECT id, sitemap_uri, target_dir, map_path, threshold, status,
            entries, downloaded, failed, error, started_at, finished_at
        FROM runs
        WHERE id = ?
    `

	runs, err := s.queryRuns(ctx, query, id.String())
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error) {
	query := `
        SELECT id, sitemap_uri, target_dir, map_path, threshold, status,
            entries, downloaded, failed, error, started_at, finished_at
        FROM runs
        ORDER BY started_at DESC
        LIMIT ? OFFSET ?
    `

	return s.queryRuns(ctx, query, limit, offset)
}

func (s *SQLiteStore) queryRuns(ctx context.Context, query string, args ...interface{}) ([]*models.Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		var run models.Run
		var idStr, status string
		var mapPath, errMsg sql.NullString
		var threshold, finishedAt sql.NullTime

		err := rows.Scan(
			&idStr,
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

		run.ID, _ = uuid.Parse(idStr)
		run.Status = models.RunStatus(status)
		run.MapPath = mapPath.String
		run.Error = errMsg.String
		run.Threshold = timePtr(threshold)
		run.FinishedAt = timePtr(finishedAt)

		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

func (s *SQLiteStore) CreateDownload(ctx context.Context, runID uuid.UUID, rec *models.DownloadRecord) error {
	query := `
        INSERT INTO downloads (run_id, filename, source_uri, path, modified, bytes, fetched_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id, filename) DO UPDATE SET
            source_uri = excluded.source_uri,
            path = excluded.path,
            modified = excluded.modified,
            bytes = excluded.bytes,
            fetched_at = excluded.fetched_at
    `

	_, err := s.db.ExecContext(ctx, query,
		runID.String(),
		rec.Filename,
		rec.SourceURI,
		rec.Path,
		rec.Modified,
		rec.Bytes,
		rec.FetchedAt,
	)

	return err
}

func (s *SQLiteStore) ListDownloads(ctx context.Context, runID uuid.UUID) ([]*models.DownloadRecord, error) {
	query := `
        SELECT filename, source_uri, path, modified, bytes, fetched_at
        FROM downloads
        WHERE run_id = ?
        ORDER BY filename
    `

	rows, err := s.db.QueryContext(ctx, query, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.DownloadRecord
	for rows.Next() {
		var rec models.DownloadRecord
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
		records = append(records, &rec)
	}

	return records, rows.Err()
}

func (s *SQLiteStore) CreateAuditRun(ctx context.Context, audit *models.AuditRun) error {
	query := `
        INSERT INTO audit_runs (id, kind, files, findings, report_path, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `

	_, err := s.db.ExecContext(ctx, query,
		audit.ID.String(),
		string(audit.Kind),
		audit.Files,
		audit.Findings,
		audit.ReportPath,
		audit.CreatedAt,
	)

	return err
}

func (s *SQLiteStore) ListAuditRuns(ctx context.Context, limit, offset int) ([]*models.AuditRun, error) {
	query := `
        SELECT id, kind, files, findings, report_path, created_at
        FROM audit_runs
        ORDER BY created_at DESC
        LIMIT ? OFFSET ?
    `

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []*models.AuditRun
	for rows.Next() {
		var audit models.AuditRun
		var idStr, kind string
		var reportPath sql.NullString

		if err := rows.Scan(
			&idStr,
			&kind,
			&audit.Files,
			&audit.Findings,
			&reportPath,
			&audit.CreatedAt,
		); err != nil {
			return nil, err
		}

		audit.ID, _ = uuid.Parse(idStr)
		audit.Kind = models.AuditKind(kind)
		audit.ReportPath = reportPath.String
		audits = append(audits, &audit)
	}

	return audits, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
