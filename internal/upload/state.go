package upload

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// StateDB remembers which files were pushed, keyed by path and content hash,
// so an edited log is pushed again and an unchanged one is skipped.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/push.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "push.db"))
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS pushed_files (
		path      TEXT PRIMARY KEY,
		hash      TEXT NOT NULL,
		workouts  INTEGER NOT NULL,
		pushed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// IsPushed reports whether path was pushed with exactly this content.
func (s *StateDB) IsPushed(path, hash string) (bool, error) {
	var stored string
	err := s.db.QueryRow(`SELECT hash FROM pushed_files WHERE path = ?`, path).Scan(&stored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored == hash, nil
}

// MarkPushed records a successful push.
func (s *StateDB) MarkPushed(path, hash string, workouts int) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO pushed_files (path, hash, workouts) VALUES (?, ?, ?)`,
		path, hash, workouts,
	)
	return err
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// hashBytes returns the hex SHA-256 of data.
func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
