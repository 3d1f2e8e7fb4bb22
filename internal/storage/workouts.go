package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/notation"
	"github.com/claude/liftlog/internal/performance"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReplaceWorkouts stores workouts for one source in a single transaction.
// Existing workouts from the same source and user on any of the incoming
// dates are deleted first, so re-importing a log is idempotent.
func (db *DB) ReplaceWorkouts(ctx context.Context, userID int, source models.Source, workouts []models.Workout) (*ingest.WriteStats, error) {
	if len(workouts) == 0 {
		return &ingest.WriteStats{}, nil
	}

	rows := make([]models.WorkoutRow, 0, len(workouts))
	var sets []models.SetRow
	for _, w := range workouts {
		row, setRows, err := toRows(userID, source, w)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		sets = append(sets, setRows...)
	}
	dates := distinctDates(rows)

	stats := &ingest.WriteStats{DatesReplaced: len(dates)}
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM workouts WHERE user_id = $1 AND source = $2 AND workout_date = ANY($3)`,
			userID, string(source), dates); err != nil {
			return fmt.Errorf("deleting existing workouts: %w", err)
		}

		for _, r := range rows {
			tag, err := tx.Exec(ctx,
				`INSERT INTO workouts (id, user_id, source, title, workout_date, raw_date, description, url)
				 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
				 ON CONFLICT DO NOTHING`,
				r.ID, r.UserID, string(r.Source), r.Title, r.Date, r.RawDate, r.Description, r.URL)
			if err != nil {
				return fmt.Errorf("inserting workout %q: %w", r.Title, err)
			}
			stats.WorkoutsInserted += tag.RowsAffected()
		}

		n, err := insertSets(ctx, tx, sets)
		if err != nil {
			return err
		}
		stats.SetsInserted = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// insertSets batch-inserts set rows. Returns count inserted.
func insertSets(ctx context.Context, tx pgx.Tx, rows []models.SetRow) (int64, error) {
	var total int64
	// Stay well under the 65535 bind parameter limit.
	const chunk = 5000
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		query, args := setInsertQuery(rows[start:end])
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("inserting workout sets: %w", err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func setInsertQuery(rows []models.SetRow) (string, []any) {
	query := `INSERT INTO workout_sets (workout_id, exercise, set_number, raw, load, reps, rpe) VALUES `
	args := make([]any, 0, len(rows)*7)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		base := i * 7
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args, r.WorkoutID, r.Exercise, r.SetNumber, r.Raw, r.Load, r.Reps, r.RPE)
	}

	return query + strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING", args
}

// toRows flattens a workout into its table rows. Set columns hold the
// notation as written; unit conversion happens at query time.
func toRows(userID int, source models.Source, w models.Workout) (models.WorkoutRow, []models.SetRow, error) {
	date, err := performance.ParseDate(w.Date)
	if err != nil {
		return models.WorkoutRow{}, nil, fmt.Errorf("workout %q: %w", w.Title, err)
	}
	id := w.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := models.WorkoutRow{
		ID:          id,
		UserID:      userID,
		Source:      source,
		Title:       w.Title,
		Date:        date,
		RawDate:     w.Date,
		Description: w.Description,
		URL:         w.URL,
	}

	var sets []models.SetRow
	for _, exercise := range w.Exercises() {
		for i, raw := range w.Work[exercise] {
			s := notation.ParseSet(raw, false)
			sets = append(sets, models.SetRow{
				WorkoutID: id,
				Exercise:  exercise,
				SetNumber: i + 1,
				Raw:       raw,
				Load:      s.Load,
				Reps:      s.Reps,
				RPE:       s.RPE,
			})
		}
	}
	return row, sets, nil
}

func distinctDates(rows []models.WorkoutRow) []time.Time {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, r := range rows {
		if !seen[r.Date] {
			seen[r.Date] = true
			dates = append(dates, r.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// QueryWorkouts retrieves workouts in a date range, oldest first. A non-empty
// exercise filter keeps only workouts containing that exact exercise name
// (other exercises of those workouts are still returned). A zero start or
// end leaves that side of the range open.
func (db *DB) QueryWorkouts(ctx context.Context, start, end time.Time, userID int, exercise string) ([]models.Workout, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT w.id, w.source, w.title, w.raw_date, w.description, w.url,
		        s.exercise, s.raw
		 FROM workouts w
		 LEFT JOIN workout_sets s ON s.workout_id = w.id
		 WHERE w.user_id = $1
		   AND ($2::date IS NULL OR w.workout_date >= $2)
		   AND ($3::date IS NULL OR w.workout_date < $3)
		   AND ($4 = '' OR EXISTS (
		        SELECT 1 FROM workout_sets f WHERE f.workout_id = w.id AND f.exercise = $4))
		 ORDER BY w.workout_date ASC, w.created_at ASC, w.id, s.exercise, s.set_number`,
		userID, nullDate(start), nullDate(end), exercise)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	var result []models.Workout
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			w              models.Workout
			source         string
			exName, rawSet *string
		)
		if err := rows.Scan(&w.ID, &source, &w.Title, &w.Date, &w.Description, &w.URL, &exName, &rawSet); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		i, ok := index[w.ID]
		if !ok {
			w.Source = models.Source(source)
			w.Work = make(map[string][]string)
			result = append(result, w)
			i = len(result) - 1
			index[w.ID] = i
		}
		if exName != nil && rawSet != nil {
			result[i].Work[*exName] = append(result[i].Work[*exName], *rawSet)
		}
	}
	return result, rows.Err()
}

// ExerciseSummary holds per-exercise totals across all stored workouts.
type ExerciseSummary struct {
	Name      string `json:"name"`
	Workouts  int    `json:"workouts"`
	Sets      int    `json:"sets"`
	FirstDate string `json:"first_date"`
	LastDate  string `json:"last_date"`
}

// ListExercises returns every exercise name the user has logged, most
// frequently trained first.
func (db *DB) ListExercises(ctx context.Context, userID int) ([]ExerciseSummary, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT s.exercise,
		        COUNT(DISTINCT w.id)::int,
		        COUNT(*)::int,
		        MIN(w.workout_date),
		        MAX(w.workout_date)
		 FROM workout_sets s
		 JOIN workouts w ON w.id = s.workout_id
		 WHERE w.user_id = $1
		 GROUP BY s.exercise
		 ORDER BY COUNT(DISTINCT w.id) DESC, s.exercise ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	var result []ExerciseSummary
	for rows.Next() {
		var e ExerciseSummary
		var first, last time.Time
		if err := rows.Scan(&e.Name, &e.Workouts, &e.Sets, &first, &last); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		e.FirstDate = first.Format("2006-01-02")
		e.LastDate = last.Format("2006-01-02")
		result = append(result, e)
	}
	return result, rows.Err()
}

func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
