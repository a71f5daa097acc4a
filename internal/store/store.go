// Package store provides SQLite persistence for opticdeck.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/darshan-rambhia/opticdeck/internal/model"
)

// Store wraps a SQLite database holding cached narratives and report history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens or creates a SQLite database at the given path and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}
	// One connection keeps the pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetNarrative returns the stored narrative for a request. Entries older than
// maxAge are treated as missing; a zero maxAge accepts any age.
func (s *Store) GetNarrative(kind model.InsightKind, input string, maxAge time.Duration) (string, bool, error) {
	var cutoff int64
	if maxAge > 0 {
		cutoff = s.now().Add(-maxAge).Unix()
	}

	var narrative string
	err := s.db.QueryRow(`
		SELECT narrative FROM narratives
		WHERE kind = ? AND input = ? AND ts >= ?`,
		string(kind), input, cutoff,
	).Scan(&narrative)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying narrative: %w", err)
	}
	return narrative, true, nil
}

// PutNarrative inserts or replaces the narrative for a request.
func (s *Store) PutNarrative(kind model.InsightKind, input, narrative string) error {
	_, err := s.db.Exec(`
		INSERT INTO narratives (kind, input, narrative, ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, input) DO UPDATE SET
			narrative = excluded.narrative,
			ts = excluded.ts`,
		string(kind), input, narrative, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upserting narrative %s/%q: %w", kind, input, err)
	}
	return nil
}

// InsertReport records a completed run. A missing ID is filled with a new
// UUID and a zero CreatedAt with the current time; both are written back to run.
func (s *Store) InsertReport(run *model.ReportRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO reports
		(id, ts, project, source_path, output_path, server_count, total_cpu, total_memory_gb, slides, insights)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Unix(), run.ProjectName, run.SourcePath, run.OutputPath,
		run.ServerCount, run.TotalCPU, run.TotalMemoryGB, run.Slides, run.Insights,
	)
	if err != nil {
		return fmt.Errorf("inserting report %s: %w", run.ID, err)
	}
	return nil
}

// ListReports returns the most recent reports first. A limit of zero or less
// returns every report.
func (s *Store) ListReports(limit int) ([]model.ReportRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, ts, project, source_path, output_path, server_count, total_cpu, total_memory_gb, slides, insights
		FROM reports
		ORDER BY ts DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var runs []model.ReportRun
	for rows.Next() {
		var r model.ReportRun
		var ts int64
		if err := rows.Scan(&r.ID, &ts, &r.ProjectName, &r.SourcePath, &r.OutputPath,
			&r.ServerCount, &r.TotalCPU, &r.TotalMemoryGB, &r.Slides, &r.Insights); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		r.CreatedAt = time.Unix(ts, 0).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
