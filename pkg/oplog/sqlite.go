package oplog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink persists entries to a SQLite database so log history
// survives daemon restarts. The ring stays the fast path; the sink backs
// historical queries.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens the database at path, creating it if needed.
// It enables WAL mode for concurrency and durability.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteSink{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *SQLiteSink) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS oplog (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts DATETIME NOT NULL,
		level TEXT NOT NULL,
		op TEXT NOT NULL,
		message TEXT NOT NULL,
		workflow_id TEXT,
		details JSON
	);

	CREATE INDEX IF NOT EXISTS idx_oplog_ts ON oplog(ts);

	CREATE INDEX IF NOT EXISTS idx_oplog_workflow ON oplog(workflow_id);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create oplog table: %w", err)
	}
	return nil
}

// Append inserts one entry.
func (s *SQLiteSink) Append(e Entry) error {
	var details []byte
	if e.Details != nil {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("failed to encode details: %w", err)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO oplog (ts, level, op, message, workflow_id, details) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time.UTC(), string(e.Level), e.Op, e.Message, e.WorkflowID, details,
	)
	if err != nil {
		return fmt.Errorf("failed to insert oplog entry: %w", err)
	}
	return nil
}

// Filter selects entries from the sink. Zero values mean "any".
type Filter struct {
	Level      Level
	Op         string
	WorkflowID string
	Since      time.Time
	Limit      int
}

// Query returns matching entries, newest first.
func (s *SQLiteSink) Query(f Filter) ([]Entry, error) {
	q := `SELECT ts, level, op, message, workflow_id, details FROM oplog WHERE 1=1`
	var args []any
	if f.Level != "" {
		q += ` AND level = ?`
		args = append(args, string(f.Level))
	}
	if f.Op != "" {
		q += ` AND op = ?`
		args = append(args, f.Op)
	}
	if f.WorkflowID != "" {
		q += ` AND workflow_id = ?`
		args = append(args, f.WorkflowID)
	}
	if !f.Since.IsZero() {
		q += ` AND ts >= ?`
		args = append(args, f.Since.UTC())
	}
	q += ` ORDER BY id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query oplog: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			level   string
			wfID    sql.NullString
			details []byte
		)
		if err := rows.Scan(&e.Time, &level, &e.Op, &e.Message, &wfID, &details); err != nil {
			return nil, fmt.Errorf("failed to scan oplog row: %w", err)
		}
		e.Level = Level(level)
		e.WorkflowID = wfID.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries older than retention and reports how many rows
// were removed.
func (s *SQLiteSink) Prune(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := s.db.Exec(`DELETE FROM oplog WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune oplog: %w", err)
	}
	return res.RowsAffected()
}
