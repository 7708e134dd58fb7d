package graph

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Archive is an optional append-only sqlite mirror of graph mutations and
// conversation turns, kept for post-session inspection. The in-memory graph
// is authoritative; nothing is ever read back from the archive at runtime.
type Archive struct {
	db     *sql.DB
	dbPath string
}

// OpenArchive creates or opens the archive at workspace/memory/archive.db.
func OpenArchive(workspace string) (*Archive, error) {
	memoryDir := filepath.Join(workspace, "memory")
	if err := os.MkdirAll(memoryDir, 0755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	dbPath := filepath.Join(memoryDir, "archive.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	a := &Archive{db: db, dbPath: dbPath}
	if err := a.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return a, nil
}

func (a *Archive) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS graph_entities (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_id   TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		attributes  TEXT,
		recorded_at DATETIME NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS graph_relations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		source      TEXT NOT NULL,
		target      TEXT NOT NULL,
		relation    TEXT NOT NULL,
		attributes  TEXT,
		recorded_at DATETIME NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS turns (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_key TEXT NOT NULL,
		sender      TEXT NOT NULL,
		message     TEXT NOT NULL,
		recorded_at DATETIME NOT NULL DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_key);
	`
	_, err := a.db.Exec(schema)
	return err
}

func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// DBPath returns the path to the archive database file.
func (a *Archive) DBPath() string {
	return a.dbPath
}

func (a *Archive) RecordEntity(entityID, entityType string, attributes map[string]interface{}) error {
	attrs, _ := json.Marshal(attributes)
	_, err := a.db.Exec(
		"INSERT INTO graph_entities (entity_id, entity_type, attributes) VALUES (?, ?, ?)",
		entityID, entityType, string(attrs),
	)
	if err != nil {
		return fmt.Errorf("archive entity: %w", err)
	}
	return nil
}

func (a *Archive) RecordRelation(source, target, relation string, attributes map[string]interface{}) error {
	attrs, _ := json.Marshal(attributes)
	_, err := a.db.Exec(
		"INSERT INTO graph_relations (source, target, relation, attributes) VALUES (?, ?, ?, ?)",
		source, target, relation, string(attrs),
	)
	if err != nil {
		return fmt.Errorf("archive relation: %w", err)
	}
	return nil
}

func (a *Archive) RecordTurn(sessionKey, sender, message string) error {
	_, err := a.db.Exec(
		"INSERT INTO turns (session_key, sender, message) VALUES (?, ?, ?)",
		sessionKey, sender, message,
	)
	if err != nil {
		return fmt.Errorf("archive turn: %w", err)
	}
	return nil
}

// TurnCount returns the number of archived turns for a session.
func (a *Archive) TurnCount(sessionKey string) int {
	var count int
	a.db.QueryRow("SELECT COUNT(*) FROM turns WHERE session_key = ?", sessionKey).Scan(&count)
	return count
}
