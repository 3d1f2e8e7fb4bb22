package gravitus

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/claude/liftlog/internal/models"
	_ "modernc.org/sqlite"
)

// StateDB remembers workout pages that were already fetched and parsed so a
// repeated scrape only downloads new workouts.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	// Workers share the handle; serialize writers.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS fetched_workouts (
		url        TEXT PRIMARY KEY,
		workout    TEXT NOT NULL,
		fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// Lookup returns the cached workout for href, if any.
func (s *StateDB) Lookup(href string) (models.Workout, bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT workout FROM fetched_workouts WHERE url = ?`, href).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Workout{}, false, nil
	}
	if err != nil {
		return models.Workout{}, false, fmt.Errorf("looking up %s: %w", href, err)
	}
	var w models.Workout
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return models.Workout{}, false, fmt.Errorf("decoding cached workout %s: %w", href, err)
	}
	return w, true, nil
}

// MarkFetched records a successfully parsed workout page.
func (s *StateDB) MarkFetched(href string, w models.Workout) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encoding workout %s: %w", href, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO fetched_workouts (url, workout) VALUES (?, ?)`,
		href, string(data),
	)
	return err
}

// Count returns the number of cached workouts.
func (s *StateDB) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM fetched_workouts`).Scan(&n)
	return n, err
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}
