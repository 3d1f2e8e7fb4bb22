package storage

import (
	"context"
	"fmt"
	"time"
)

// DataStats holds aggregate statistics about a user's training log.
type DataStats struct {
	TotalWorkouts  int64        `json:"total_workouts"`
	TotalSets      int64        `json:"total_sets"`
	TotalExercises int64        `json:"total_exercises"`
	EarliestDate   *time.Time   `json:"earliest_date"`
	LatestDate     *time.Time   `json:"latest_date"`
	BySource       []SourceStat `json:"by_source"`
}

// SourceStat holds summary stats for a single workout source.
type SourceStat struct {
	Source   string `json:"source"`
	Workouts int64  `json:"workouts"`
	Sets     int64  `json:"sets"`
}

// GetDataStats returns aggregate statistics for a user's stored workouts.
func (db *DB) GetDataStats(ctx context.Context, userID int) (*DataStats, error) {
	stats := &DataStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MIN(workout_date), MAX(workout_date) FROM workouts WHERE user_id = $1`, userID,
	).Scan(&stats.TotalWorkouts, &stats.EarliestDate, &stats.LatestDate)
	if err != nil {
		return nil, fmt.Errorf("counting workouts: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT s.exercise)
		 FROM workout_sets s JOIN workouts w ON w.id = s.workout_id
		 WHERE w.user_id = $1`, userID,
	).Scan(&stats.TotalSets, &stats.TotalExercises)
	if err != nil {
		return nil, fmt.Errorf("counting sets: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT w.source, COUNT(DISTINCT w.id), COUNT(s.workout_id)
		 FROM workouts w
		 LEFT JOIN workout_sets s ON s.workout_id = w.id
		 WHERE w.user_id = $1
		 GROUP BY w.source
		 ORDER BY w.source`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying workouts by source: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s SourceStat
		if err := rows.Scan(&s.Source, &s.Workouts, &s.Sets); err != nil {
			return nil, fmt.Errorf("scanning source stat: %w", err)
		}
		stats.BySource = append(stats.BySource, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
