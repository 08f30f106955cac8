// Package history keeps a SQLite record of covrun runs and per-file outcomes.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/covrun/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// RunRecord is one recorded run.
type RunRecord struct {
	ID        string
	StartedAt time.Time
	Format    models.ReportFormat
	Verdict   models.CoverageCheck // empty for PROTO runs
	Counts    models.RunCounts
	Duration  time.Duration
}

// FileRecord is the outcome of one file within a run.
type FileRecord struct {
	RunID           string
	StartedAt       time.Time
	FilePath        string
	Outcome         models.ReportKind
	CoveragePercent int
	LinesFound      int
	LinesHit        int
	TestTarget      string
	Message         string
}

// Store manages the history database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry retries statements that hit "database is locked" while
// another covrun process initializes the same file.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores the run and one row per report in a single transaction.
func (s *Store) RecordRun(ctx context.Context, result *models.RunResult) error {
	if result == nil {
		return fmt.Errorf("record run: nil result")
	}
	startedAt := time.Now().Add(-result.Duration)
	counts := result.Counts()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, format, verdict, measured, failed, exempted, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		startedAt.UnixMilli(),
		string(result.Format),
		string(result.Check),
		counts.Measured,
		counts.Failed,
		counts.Exempted,
		result.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO file_results (run_id, file_path, outcome, coverage_percent, lines_found, lines_hit, test_target, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare file result insert: %w", err)
	}
	defer stmt.Close()

	for _, report := range result.Reports {
		row := fileRow(report)
		if _, err := stmt.ExecContext(ctx, result.RunID, row.FilePath, row.Outcome.String(),
			row.CoveragePercent, row.LinesFound, row.LinesHit, row.TestTarget, row.Message); err != nil {
			return fmt.Errorf("insert file result for %s: %w", row.FilePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func fileRow(report models.CoverageReport) FileRecord {
	row := FileRecord{FilePath: report.FilePath(), Outcome: report.Kind()}
	switch report.Kind() {
	case models.KindDetails:
		d, _ := report.Details()
		row.CoveragePercent = d.CoveragePercent()
		row.LinesFound = d.LinesFound
		row.LinesHit = d.LinesHit
		row.TestTarget = strings.Join(d.TestTargets, ",")
	case models.KindFailure:
		f, _ := report.Failure()
		row.TestTarget = f.TestTarget
		row.Message = f.Message
	case models.KindExemption:
		e, _ := report.Exemption()
		row.Message = e.Reason.String()
	}
	return row
}

// RecentRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, format, verdict, measured, failed, exempted, duration_ms
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var startedMs, durationMs int64
		var format, verdict string
		if err := rows.Scan(&r.ID, &startedMs, &format, &verdict,
			&r.Counts.Measured, &r.Counts.Failed, &r.Counts.Exempted, &durationMs); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedMs)
		r.Format = models.ReportFormat(format)
		r.Verdict = models.CoverageCheck(verdict)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// FileHistory returns up to limit outcomes for filePath, newest first.
func (s *Store) FileHistory(ctx context.Context, filePath string, limit int) ([]FileRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.run_id, r.started_at, f.file_path, f.outcome, f.coverage_percent, f.lines_found, f.lines_hit, f.test_target, f.message
		FROM file_results f JOIN runs r ON r.id = f.run_id
		WHERE f.file_path = ?
		ORDER BY r.started_at DESC, f.id DESC LIMIT ?`, filePath, limit)
	if err != nil {
		return nil, fmt.Errorf("query file history: %w", err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		var rec FileRecord
		var startedMs int64
		var outcome string
		if err := rows.Scan(&rec.RunID, &startedMs, &rec.FilePath, &outcome, &rec.CoveragePercent,
			&rec.LinesFound, &rec.LinesHit, &rec.TestTarget, &rec.Message); err != nil {
			return nil, fmt.Errorf("scan file history row: %w", err)
		}
		rec.StartedAt = time.UnixMilli(startedMs)
		rec.Outcome = parseOutcome(outcome)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file history rows: %w", err)
	}
	return records, nil
}

func parseOutcome(s string) models.ReportKind {
	for _, k := range []models.ReportKind{models.KindDetails, models.KindFailure, models.KindExemption} {
		if k.String() == s {
			return k
		}
	}
	return models.KindInvalid
}
