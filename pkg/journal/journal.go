// Package journal keeps a local SQLite record of every formatted send: when
// it happened, how many parts went out, which fields were included, and
// what it cost in tokens. The journal is observational; send paths never
// depend on it succeeding.
package journal

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/odvcencio/spyglass/pkg/errs"
)

//go:embed schema.sql
var schemaSQL string

const timeLayout = "2006-01-02 15:04:05"

// DefaultRecentLimit bounds Recent when the caller passes no limit.
const DefaultRecentLimit = 20

// Entry is one recorded send.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	PromptLen int       `json:"prompt_len"`
	Parts     int       `json:"parts"`
	Fields    []string  `json:"fields,omitempty"`
	Tokens    int       `json:"tokens"`
}

// Journal is an append-mostly send log backed by SQLite.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database. ":memory:" is accepted for
// tests and ephemeral use.
func Open(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errs.New(errs.CodeJournalOpen, "journal path cannot be empty")
	}

	inMemory := path == ":memory:"
	if !inMemory {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, errs.Wrap(err, errs.CodeJournalOpen, "creating journal directory").WithContext("path", path)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeJournalOpen, "opening journal database").WithContext("path", path)
	}

	if inMemory {
		// Each connection gets its own in-memory database; a pool of one
		// keeps the schema visible to every statement.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(0)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errs.Wrap(err, errs.CodeJournalOpen, "configuring journal database")
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, errs.CodeJournalOpen, "applying journal schema")
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append records one send. A zero ID is assigned; a zero CreatedAt is
// stamped with the current time.
func (j *Journal) Append(e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var fieldsJSON any
	if e.Fields != nil {
		data, err := json.Marshal(e.Fields)
		if err != nil {
			return errs.Wrap(err, errs.CodeJournalWrite, "encoding field list")
		}
		fieldsJSON = string(data)
	}

	query := `
		INSERT INTO sends (id, session_id, created_at, prompt_len, parts, fields_json, tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := j.db.Exec(query,
		e.ID,
		e.SessionID,
		e.CreatedAt.UTC().Format(timeLayout),
		e.PromptLen,
		e.Parts,
		fieldsJSON,
		e.Tokens,
	)
	if err != nil {
		return errs.Wrap(err, errs.CodeJournalWrite, "inserting send record").WithContext("id", e.ID)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	query := `
		SELECT id, session_id, created_at, prompt_len, parts, fields_json, tokens
		FROM sends
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := j.db.Query(query, limit)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeJournalRead, "querying recent sends")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			createdAt  string
			fieldsJSON sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &createdAt, &e.PromptLen, &e.Parts, &fieldsJSON, &e.Tokens); err != nil {
			return nil, errs.Wrap(err, errs.CodeJournalRead, "scanning send record")
		}
		if ts, err := time.ParseInLocation(timeLayout, createdAt, time.UTC); err == nil {
			e.CreatedAt = ts
		}
		if fieldsJSON.Valid && fieldsJSON.String != "" {
			_ = json.Unmarshal([]byte(fieldsJSON.String), &e.Fields)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the total number of recorded sends.
func (j *Journal) Count() (int, error) {
	var n int
	err := j.db.QueryRow(`SELECT COUNT(*) FROM sends`).Scan(&n)
	if err != nil {
		return 0, errs.Wrap(err, errs.CodeJournalRead, "counting sends")
	}
	return n, nil
}
