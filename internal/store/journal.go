package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
)

// ResetMarker is the stage value recorded for a workflow reset.
const ResetMarker = "reset"

// Session is one interactive workflow run, keyed by the chat it belongs to.
type Session struct {
	ID        string
	ChatID    string
	StartedAt time.Time
}

// Run is one successful stage completion, or a reset.
type Run struct {
	ID        int64
	SessionID string
	Stage     string
	Prompt    string
	Output    string
	CreatedAt time.Time
}

// Journal keeps an append-only record of stage runs in SQLite. It never
// stores the API credential.
type Journal struct {
	DB *sql.DB
}

func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// The pure-Go driver serialises writers; one connection avoids
	// SQLITE_BUSY between gateway goroutines.
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			chat_id TEXT,
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS stage_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			stage TEXT,
			prompt TEXT,
			output TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_stage_runs_session ON stage_runs(session_id, id);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialise journal: %w", err)
		}
	}

	return &Journal{DB: db}, nil
}

func (j *Journal) Close() error {
	return j.DB.Close()
}

// StartSession registers a new session for chatID and returns its ID.
func (j *Journal) StartSession(chatID string) (string, error) {
	id := uuid.NewString()
	_, err := j.DB.Exec(`INSERT INTO sessions (id, chat_id, started_at) VALUES (?, ?, ?)`, id, chatID, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return id, nil
}

func (j *Journal) RecordRun(sessionID, stage, prompt, output string) error {
	query := `INSERT INTO stage_runs (session_id, stage, prompt, output, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := j.DB.Exec(query, sessionID, stage, prompt, output, time.Now().UTC())
	return err
}

func (j *Journal) RecordReset(sessionID string) error {
	return j.RecordRun(sessionID, ResetMarker, "", "")
}

// Runs returns a session's runs in the order they happened.
func (j *Journal) Runs(sessionID string) ([]Run, error) {
	query := `SELECT id, session_id, stage, prompt, output, created_at FROM stage_runs WHERE session_id = ? ORDER BY id ASC`
	rows, err := j.DB.Query(query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Stage, &r.Prompt, &r.Output, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Sessions returns the most recent sessions, newest first.
func (j *Journal) Sessions(limit int) ([]Session, error) {
	query := `SELECT id, chat_id, started_at FROM sessions ORDER BY started_at DESC LIMIT ?`
	rows, err := j.DB.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.ChatID, &s.StartedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
