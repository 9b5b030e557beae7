// Package store persists batch reports and rejection records to a local
// SQLite database so past runs can be inspected after the process exits.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"blogsmith/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database holding batch history.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "blogsmith.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batch_reports (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		approved_count INTEGER NOT NULL,
		rejected_count INTEGER NOT NULL,
		regeneration_count INTEGER NOT NULL,
		summary TEXT NOT NULL,
		results TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS rejections (
		report_id TEXT NOT NULL,
		slug TEXT NOT NULL,
		job_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		similarity_score REAL NOT NULL,
		similar_to TEXT,
		PRIMARY KEY (report_id, job_id),
		FOREIGN KEY (report_id) REFERENCES batch_reports(id)
	);
	CREATE INDEX IF NOT EXISTS idx_reports_created ON batch_reports(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return nil
}

// SaveBatchReport persists a report and its rejection records.
func (s *Store) SaveBatchReport(report core.BatchReport, rejections []core.Rejection) error {
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	resultsJSON, err := json.Marshal(report.Results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO batch_reports
		(id, created_at, approved_count, rejected_count, regeneration_count, summary, results)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.CreatedAt,
		report.Summary.ApprovedCount, report.Summary.RejectedCount, report.Summary.RegenerationCount,
		string(summaryJSON), string(resultsJSON))
	if err != nil {
		return fmt.Errorf("failed to save batch report: %w", err)
	}

	for _, r := range rejections {
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO rejections
			(report_id, slug, job_id, reason, similarity_score, similar_to)
			VALUES (?, ?, ?, ?, ?, ?)`,
			report.ID, r.Slug, r.JobID, r.Reason, r.SimilarityScore, r.SimilarTo)
		if err != nil {
			return fmt.Errorf("failed to save rejection record: %w", err)
		}
	}

	return tx.Commit()
}

// ListBatchReports returns the most recent reports, newest first.
func (s *Store) ListBatchReports(limit int) ([]core.BatchReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, created_at, summary, results
		FROM batch_reports
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch reports: %w", err)
	}
	defer rows.Close()

	var reports []core.BatchReport
	for rows.Next() {
		var report core.BatchReport
		var createdAt time.Time
		var summaryJSON, resultsJSON string
		if err := rows.Scan(&report.ID, &createdAt, &summaryJSON, &resultsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan batch report: %w", err)
		}
		report.CreatedAt = createdAt
		if err := json.Unmarshal([]byte(summaryJSON), &report.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode summary: %w", err)
		}
		if err := json.Unmarshal([]byte(resultsJSON), &report.Results); err != nil {
			return nil, fmt.Errorf("failed to decode results: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// GetRejections returns the rejection records for one report.
func (s *Store) GetRejections(reportID string) ([]core.Rejection, error) {
	rows, err := s.db.Query(`
		SELECT slug, job_id, reason, similarity_score, similar_to
		FROM rejections
		WHERE report_id = ?
		ORDER BY job_id`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rejections: %w", err)
	}
	defer rows.Close()

	var rejections []core.Rejection
	for rows.Next() {
		var r core.Rejection
		var similarTo sql.NullString
		if err := rows.Scan(&r.Slug, &r.JobID, &r.Reason, &r.SimilarityScore, &similarTo); err != nil {
			return nil, fmt.Errorf("failed to scan rejection: %w", err)
		}
		r.SimilarTo = similarTo.String
		rejections = append(rejections, r)
	}
	return rejections, rows.Err()
}

// Clear removes all persisted reports and rejections.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM rejections`); err != nil {
		return fmt.Errorf("failed to clear rejections: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM batch_reports`); err != nil {
		return fmt.Errorf("failed to clear batch reports: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
