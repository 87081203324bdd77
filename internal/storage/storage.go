// Package storage keeps the project-local history registry: past scans and
// backup records in a SQLite database under the hidden project directory.
// The registry is advisory — rollback trusts only the on-disk backup
// metadata, never rows here.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aledlie/dedup/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_root TEXT NOT NULL,
	language TEXT NOT NULL,
	construct_kind TEXT NOT NULL,
	min_similarity REAL NOT NULL,
	construct_count INTEGER NOT NULL,
	group_count INTEGER NOT NULL,
	truncated INTEGER NOT NULL DEFAULT 0,
	scanned_at TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS backups (
	backup_id TEXT PRIMARY KEY,
	group_id TEXT NOT NULL,
	file_count INTEGER NOT NULL,
	plan_summary TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_backups_status ON backups(status);
CREATE INDEX IF NOT EXISTS idx_scans_scanned_at ON scans(scanned_at);
`

// BackupStatus values recorded in the registry.
const (
	BackupActive     = "active"
	BackupRolledBack = "rolled_back"
	BackupCleaned    = "cleaned"
)

// Store is the SQLite-backed history registry.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the registry database at path, with WAL
// mode for concurrent readers.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordScan persists one scan's summary.
func (s *Store) RecordScan(ctx context.Context, result *types.ScanResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scans (project_root, language, construct_kind, min_similarity,
			construct_count, group_count, truncated, scanned_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ProjectRoot, string(result.Language), string(result.ConstructKind),
		result.MinSimilarity, result.ConstructCount, len(result.Groups),
		boolToInt(result.Truncated), result.ScannedAt.UTC(),
		result.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record scan: %w", err)
	}
	return nil
}

// Scanrecord is one row of scan history.
type ScanRecord struct {
	ID             int64
	ProjectRoot    string
	Language       string
	ConstructKind  string
	MinSimilarity  float64
	ConstructCount int
	GroupCount     int
	Truncated      bool
	ScannedAt      time.Time
	Duration       time.Duration
}

// RecentScans returns the newest limit scans.
func (s *Store) RecentScans(ctx context.Context, limit int) ([]ScanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_root, language, construct_kind, min_similarity,
			construct_count, group_count, truncated, scanned_at, duration_ms
		FROM scans ORDER BY scanned_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []ScanRecord
	for rows.Next() {
		var r ScanRecord
		var truncated int
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.ProjectRoot, &r.Language, &r.ConstructKind,
			&r.MinSimilarity, &r.ConstructCount, &r.GroupCount, &truncated,
			&r.ScannedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Truncated = truncated != 0
		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, r)
	}
	return records, rows.Err()
}

// RecordBackup registers a freshly created backup.
func (s *Store) RecordBackup(ctx context.Context, meta *types.BackupMetadata) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO backups (backup_id, group_id, file_count, plan_summary, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		meta.BackupID, meta.GroupID, len(meta.Files), meta.PlanSummary,
		BackupActive, meta.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record backup %s: %w", meta.BackupID, err)
	}
	return nil
}

// SetBackupStatus transitions a backup's registry status.
func (s *Store) SetBackupStatus(ctx context.Context, backupID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE backups SET status = ? WHERE backup_id = ?`, status, backupID)
	if err != nil {
		return fmt.Errorf("failed to update backup %s: %w", backupID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("backup %s not found in registry", backupID)
	}
	return nil
}

// BackupRecord is one row of backup history.
type BackupRecord struct {
	BackupID    string
	GroupID     string
	FileCount   int
	PlanSummary string
	Status      string
	CreatedAt   time.Time
}

// ListBackups returns backup rows, newest first, optionally filtered by
// status ("" = all).
func (s *Store) ListBackups(ctx context.Context, status string) ([]BackupRecord, error) {
	query := `SELECT backup_id, group_id, file_count, plan_summary, status, created_at
		FROM backups`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []BackupRecord
	for rows.Next() {
		var r BackupRecord
		var summary sql.NullString
		if err := rows.Scan(&r.BackupID, &r.GroupID, &r.FileCount, &summary,
			&r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.PlanSummary = summary.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// StaleBackups returns active backups created before cutoff, oldest first.
func (s *Store) StaleBackups(ctx context.Context, cutoff time.Time) ([]BackupRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT backup_id, group_id, file_count, plan_summary, status, created_at
		FROM backups WHERE status = ? AND created_at < ?
		ORDER BY created_at ASC`, BackupActive, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query stale backups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []BackupRecord
	for rows.Next() {
		var r BackupRecord
		var summary sql.NullString
		if err := rows.Scan(&r.BackupID, &r.GroupID, &r.FileCount, &summary,
			&r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.PlanSummary = summary.String
		records = append(records, r)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
