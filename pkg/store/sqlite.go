package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore snapshot store persistido em SQLite. Substitui o localStorage
// do cliente web por um cache local durável entre ciclos de probe.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore abre (ou cria) o banco de snapshots no caminho informado
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	// Um único writer evita SQLITE_BUSY com o driver puro-Go
	db.SetMaxOpenConns(1)

	schema := `CREATE TABLE IF NOT EXISTS snapshots (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get retorna o valor armazenado para a chave
func (ss *SQLiteStore) Get(key string) (string, bool, error) {
	var value string
	err := ss.db.QueryRow(`SELECT value FROM snapshots WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read snapshot %q: %w", key, err)
	}
	return value, true, nil
}

// Set grava (upsert) o valor para a chave
func (ss *SQLiteStore) Set(key, value string) error {
	_, err := ss.db.Exec(
		`INSERT INTO snapshots (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write snapshot %q: %w", key, err)
	}
	return nil
}

// Close fecha o banco de snapshots
func (ss *SQLiteStore) Close() error {
	return ss.db.Close()
}
