package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Import log statuses. Scrapes start as StatusRunning and are finalized.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
	StatusCancel  = "cancelled"
)

// ImportLog is one row of import history: a log upload, a Gravitus
// ingest or a server-side scrape.
type ImportLog struct {
	ID               int64            `json:"id"`
	UserID           int              `json:"user_id"`
	CreatedAt        time.Time        `json:"created_at"`
	Source           string           `json:"source"`
	Status           string           `json:"status"`
	WorkoutsReceived int              `json:"workouts_received"`
	WorkoutsInserted int64            `json:"workouts_inserted"`
	SetsReceived     int              `json:"sets_received"`
	SetsInserted     int64            `json:"sets_inserted"`
	DatesReplaced    int              `json:"dates_replaced"`
	DurationMs       *int             `json:"duration_ms"`
	ErrorMessage     *string          `json:"error_message"`
	Metadata         *json.RawMessage `json:"metadata"`
}

// InsertImportLog creates a new import log entry and returns its ID.
func (db *DB) InsertImportLog(ctx context.Context, log ImportLog) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO import_logs (user_id, source, status, workouts_received, workouts_inserted,
		 sets_received, sets_inserted, dates_replaced, duration_ms, error_message, metadata)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 RETURNING id`,
		log.UserID, log.Source, log.Status, log.WorkoutsReceived, log.WorkoutsInserted,
		log.SetsReceived, log.SetsInserted, log.DatesReplaced,
		log.DurationMs, log.ErrorMessage, log.Metadata,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting import log: %w", err)
	}
	return id, nil
}

// UpdateImportLog finalizes a StatusRunning entry.
func (db *DB) UpdateImportLog(ctx context.Context, id int64, log ImportLog) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE import_logs SET
		 status = $2, workouts_received = $3, workouts_inserted = $4,
		 sets_received = $5, sets_inserted = $6, dates_replaced = $7,
		 duration_ms = $8, error_message = $9, metadata = $10
		 WHERE id = $1`,
		id, log.Status, log.WorkoutsReceived, log.WorkoutsInserted,
		log.SetsReceived, log.SetsInserted, log.DatesReplaced,
		log.DurationMs, log.ErrorMessage, log.Metadata,
	)
	if err != nil {
		return fmt.Errorf("updating import log %d: %w", id, err)
	}
	return nil
}

const importLogColumns = `id, user_id, created_at, source, status, workouts_received, workouts_inserted,
	sets_received, sets_inserted, dates_replaced, duration_ms, error_message, metadata`

func scanImportLog(row pgx.CollectableRow) (ImportLog, error) {
	var l ImportLog
	err := row.Scan(&l.ID, &l.UserID, &l.CreatedAt, &l.Source, &l.Status,
		&l.WorkoutsReceived, &l.WorkoutsInserted, &l.SetsReceived, &l.SetsInserted,
		&l.DatesReplaced, &l.DurationMs, &l.ErrorMessage, &l.Metadata)
	return l, err
}

// QueryImportLogs returns up to limit import logs for a user, newest first.
func (db *DB) QueryImportLogs(ctx context.Context, userID, limit int) ([]ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT `+importLogColumns+`
		 FROM import_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying import logs: %w", err)
	}
	logs, err := pgx.CollectRows(rows, scanImportLog)
	if err != nil {
		return nil, fmt.Errorf("scanning import logs: %w", err)
	}
	return logs, nil
}
