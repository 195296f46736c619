// Package history keeps an append-only SQLite log of evaluation submissions.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kilupskalvis/vbs/internal/models"
	"github.com/kilupskalvis/vbs/internal/submission"
	_ "modernc.org/sqlite"
)

const currentSchemaVersion = 1

// Record is one sent submission.
type Record struct {
	ID           int64       `json:"id"`
	BoardID      string      `json:"board_id"`
	Task         models.Task `json:"task"`
	EvaluationID string      `json:"evaluation_id"`
	Body         string      `json:"body"`
	Status       int         `json:"status"`
	Response     string      `json:"response,omitempty"`
	Error        string      `json:"error,omitempty"`
	Late         bool        `json:"late,omitempty"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   time.Time   `json:"finished_at"`
}

// FromOutcome converts a workflow outcome into a log record.
func FromOutcome(boardID string, o *submission.Outcome) (*Record, error) {
	body, err := json.Marshal(o.Body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	r := &Record{
		BoardID:      boardID,
		Task:         o.Task,
		EvaluationID: o.EvaluationID,
		Body:         string(body),
		Error:        o.Error,
		Late:         o.Late,
		StartedAt:    o.StartedAt,
		FinishedAt:   o.FinishedAt,
	}
	if o.Response != nil {
		r.Status = o.Response.Status
		r.Response = string(o.Response.Data)
	}
	return r, nil
}

// Store is the SQLite submission log.
type Store struct {
	db *sql.DB
}

// New opens the log at dbPath, creating the file and schema if needed.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.Initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Initialize creates the database schema
func (s *Store) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		board_id TEXT NOT NULL,
		task TEXT NOT NULL,
		evaluation_id TEXT NOT NULL,
		body JSON NOT NULL,
		status INTEGER DEFAULT 0,
		response TEXT,
		error TEXT,
		late BOOLEAN DEFAULT FALSE,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS history_schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_board ON submissions(board_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT OR REPLACE INTO history_schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

// Record appends a submission and sets its ID.
func (s *Store) Record(r *Record) error {
	res, err := s.db.Exec(`
		INSERT INTO submissions (board_id, task, evaluation_id, body, status, response, error, late, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BoardID, string(r.Task), r.EvaluationID, r.Body, r.Status,
		sql.NullString{String: r.Response, Valid: r.Response != ""},
		sql.NullString{String: r.Error, Valid: r.Error != ""},
		r.Late,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("submission id: %w", err)
	}
	r.ID = id
	return nil
}

// Recent returns the newest submissions first. limit <= 0 returns all.
func (s *Store) Recent(limit int) ([]*Record, error) {
	return s.query(`
		SELECT id, board_id, task, evaluation_id, body, status, response, error, late, started_at, finished_at
		FROM submissions ORDER BY id DESC LIMIT ?`, queryLimit(limit))
}

// ForBoard returns a board's submissions, newest first.
func (s *Store) ForBoard(boardID string, limit int) ([]*Record, error) {
	return s.query(`
		SELECT id, board_id, task, evaluation_id, body, status, response, error, late, started_at, finished_at
		FROM submissions WHERE board_id = ? ORDER BY id DESC LIMIT ?`, boardID, queryLimit(limit))
}

func queryLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func (s *Store) query(q string, args ...interface{}) ([]*Record, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var r Record
		var task, started, finished string
		var response, errText sql.NullString
		if err := rows.Scan(&r.ID, &r.BoardID, &task, &r.EvaluationID, &r.Body, &r.Status,
			&response, &errText, &r.Late, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		r.Task = models.Task(task)
		r.Response = response.String
		r.Error = errText.String
		r.StartedAt = parseTimestamp(started)
		r.FinishedAt = parseTimestamp(finished)
		records = append(records, &r)
	}
	return records, rows.Err()
}

// parseTimestamp parses a timestamp string from SQLite in various formats
func parseTimestamp(s string) time.Time {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
