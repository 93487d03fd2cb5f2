// Package history persists completed run results to SQLite so past runs
// survive engine restarts and can back the run-history view.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/promptdeck/engine/pkg/types"
)

// Store is a SQLite-backed store of completed runs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and prepares the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	store, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore creates the runs table and index if they don't exist, then
// returns a Store backed by the provided *sql.DB.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			project_name TEXT    NOT NULL,
			fingerprint  TEXT    NOT NULL,
			pass_count   INTEGER NOT NULL,
			fail_count   INTEGER NOT NULL,
			results      TEXT,
			created_at   INTEGER NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("create runs table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_runs_project_ts
		ON runs (project_name, created_at)
	`); err != nil {
		return nil, fmt.Errorf("create runs index: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save inserts one completed run and returns its row id.
func (s *Store) Save(record types.RunRecord) (int64, error) {
	createdAt := record.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixNano()
	}
	res, err := s.db.Exec(
		`INSERT INTO runs (project_name, fingerprint, pass_count, fail_count, results, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.ProjectName, record.Fingerprint, record.PassCount, record.FailCount,
		string(record.Results), createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("save run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save run id: %w", err)
	}
	return id, nil
}

// List returns up to limit runs for the project, most recent first. An
// empty projectName lists runs across all projects.
func (s *Store) List(projectName string, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, project_name, fingerprint, pass_count, fail_count, results, created_at
		 FROM runs`
	args := []any{}
	if projectName != "" {
		query += ` WHERE project_name = ?`
		args = append(args, projectName)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []types.RunRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}
	return records, nil
}

// Latest returns the most recent run for the project, or ok=false when the
// project has no history.
func (s *Store) Latest(projectName string) (types.RunRecord, bool, error) {
	records, err := s.List(projectName, 1)
	if err != nil {
		return types.RunRecord{}, false, err
	}
	if len(records) == 0 {
		return types.RunRecord{}, false, nil
	}
	return records[0], true, nil
}

func scanRecord(rows *sql.Rows) (types.RunRecord, error) {
	var rec types.RunRecord
	var results sql.NullString
	if err := rows.Scan(&rec.ID, &rec.ProjectName, &rec.Fingerprint,
		&rec.PassCount, &rec.FailCount, &results, &rec.CreatedAt); err != nil {
		return types.RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	if results.Valid && results.String != "" {
		rec.Results = json.RawMessage(results.String)
	}
	return rec, nil
}
