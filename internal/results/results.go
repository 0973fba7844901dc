// Package results keeps a small sqlite ledger of comparison and baseline
// operations, so a sequence of test runs against the same case can be
// reviewed after the fact.
package results

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one ledger entry.
type Record struct {
	ID        string
	Timestamp time.Time
	CaseName  string
	Kind      string // compare, baseline-compare, baseline-generate, save
	Success   bool
	Synopsis  string
}

// Store manages the results database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens the results store at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		case_name TEXT NOT NULL,
		kind TEXT NOT NULL,
		success INTEGER NOT NULL,
		synopsis TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_results_case ON results(case_name);
	CREATE INDEX IF NOT EXISTS idx_results_timestamp ON results(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Add appends one entry and returns its generated id.
func (s *Store) Add(caseName, kind string, success bool, synopsis string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO results (id, timestamp, case_name, kind, success, synopsis)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC(), caseName, kind, boolToInt(success), synopsis,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert result: %w", err)
	}
	return id, nil
}

// Recent returns up to limit entries for a case, newest first. An empty
// caseName returns entries across all cases.
func (s *Store) Recent(caseName string, limit int) ([]Record, error) {
	query := `SELECT id, timestamp, case_name, kind, success, synopsis
	          FROM results`
	args := []any{}
	if caseName != "" {
		query += " WHERE case_name = ?"
		args = append(args, caseName)
	}
	query += " ORDER BY timestamp DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var success int
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.CaseName, &r.Kind, &success, &r.Synopsis); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Success = success != 0
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
