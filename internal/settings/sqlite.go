//go:build !rp2350

package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		kind  TEXT NOT NULL,
		value TEXT NOT NULL
	);
`

const upsertSQL = `
	INSERT INTO settings (key, kind, value) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET kind = excluded.kind, value = excluded.value
`

// SQLiteStore is a Store persisted in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the settings database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create settings table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) get(key string) (kind, string, error) {
	var k, v string
	err := s.db.QueryRow("SELECT kind, value FROM settings WHERE key = ?", key).Scan(&k, &v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("query %s: %w", key, err)
	}
	return kind(k), v, nil
}

func (s *SQLiteStore) set(key string, k kind, text string) error {
	if _, err := s.db.Exec(upsertSQL, key, string(k), text); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) GetInt8(key string) (int8, error) {
	k, text, err := s.get(key)
	if err != nil {
		return 0, err
	}
	v, err := decode(k, kindInt8, text)
	return int8(v), err
}

func (s *SQLiteStore) GetInt32(key string) (int32, error) {
	k, text, err := s.get(key)
	if err != nil {
		return 0, err
	}
	v, err := decode(k, kindInt32, text)
	return int32(v), err
}

func (s *SQLiteStore) GetString(key string) (string, error) {
	k, text, err := s.get(key)
	if err != nil {
		return "", err
	}
	if k != kindString {
		return "", ErrWrongType
	}
	return text, nil
}

func (s *SQLiteStore) SetInt8(key string, v int8) error {
	return s.set(key, kindInt8, strconv.Itoa(int(v)))
}

func (s *SQLiteStore) SetInt32(key string, v int32) error {
	return s.set(key, kindInt32, strconv.Itoa(int(v)))
}

func (s *SQLiteStore) SetString(key string, v string) error {
	return s.set(key, kindString, v)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
