package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/units"
)

// TrainingPeriod holds one source's training volume within a period. Tonnage
// is the sum of load x reps in the unit the source records loads in.
type TrainingPeriod struct {
	Period   string  `json:"period"`
	Source   string  `json:"source"`
	Sessions int     `json:"sessions"`
	Sets     int     `json:"sets"`
	Reps     int     `json:"reps"`
	Tonnage  float64 `json:"tonnage"`
}

// VolumePeriod is one period's volume across all sources, tonnage in a
// single unit.
type VolumePeriod struct {
	Period   string  `json:"period"`
	Sessions int     `json:"sessions"`
	Sets     int     `json:"sets"`
	Reps     int     `json:"reps"`
	Tonnage  float64 `json:"tonnage"`
}

// GetTrainingSummary returns sessions, sets, reps and tonnage per period and
// source, newest period first. bucket is "week" or "month".
func (db *DB) GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]TrainingPeriod, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, w.workout_date)::date AS period,
		        w.source,
		        COUNT(DISTINCT w.id)::int,
		        COUNT(s.set_number)::int,
		        COALESCE(SUM(s.reps), 0)::int,
		        COALESCE(SUM(s.load * s.reps), 0)::float8
		 FROM workouts w
		 LEFT JOIN workout_sets s ON s.workout_id = w.id
		 WHERE w.user_id = $4
		   AND ($2::date IS NULL OR w.workout_date >= $2)
		   AND ($3::date IS NULL OR w.workout_date < $3)
		 GROUP BY period, w.source
		 ORDER BY period DESC, w.source`,
		truncInterval(bucket), nullDate(start), nullDate(end), userID)
	if err != nil {
		return nil, fmt.Errorf("querying training summary: %w", err)
	}
	defer rows.Close()

	var result []TrainingPeriod
	for rows.Next() {
		var (
			period time.Time
			p      TrainingPeriod
		)
		if err := rows.Scan(&period, &p.Source, &p.Sessions, &p.Sets, &p.Reps, &p.Tonnage); err != nil {
			return nil, fmt.Errorf("scanning training summary: %w", err)
		}
		p.Period = period.Format("2006-01-02")
		result = append(result, p)
	}
	return result, rows.Err()
}

// MergeVolume folds per-source rows into one row per period, newest first.
// toKg reports whether a source records pounds; tonnage ends up in kg, or in
// lb when imperial is set.
func MergeVolume(rows []TrainingPeriod, toKg func(models.Source) bool, imperial bool) []VolumePeriod {
	byPeriod := make(map[string]*VolumePeriod)
	for _, r := range rows {
		v, ok := byPeriod[r.Period]
		if !ok {
			v = &VolumePeriod{Period: r.Period}
			byPeriod[r.Period] = v
		}
		tonnage := r.Tonnage
		if toKg != nil && toKg(models.Source(r.Source)) {
			tonnage /= units.KgInLb
		}
		v.Sessions += r.Sessions
		v.Sets += r.Sets
		v.Reps += r.Reps
		v.Tonnage += tonnage
	}

	out := make([]VolumePeriod, 0, len(byPeriod))
	for _, v := range byPeriod {
		if imperial {
			v.Tonnage *= units.KgInLb
		}
		v.Tonnage = units.Round(v.Tonnage, units.DefaultPrecision)
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	return out
}

// truncInterval maps a bucket name to a date_trunc field.
func truncInterval(bucket string) string {
	switch bucket {
	case "week", "1 week":
		return "week"
	default:
		return "month"
	}
}
