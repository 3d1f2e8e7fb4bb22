package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkoutRow is a row ready for insertion into the workouts table.
type WorkoutRow struct {
	ID          uuid.UUID
	UserID      int
	Source      Source
	Title       string
	Date        time.Time
	RawDate     string
	Description string
	URL         string
}

// SetRow is a row for the workout_sets table. Raw is the set string exactly
// as it appears in the workout; the parsed columns are nil when absent.
type SetRow struct {
	WorkoutID uuid.UUID
	Exercise  string
	SetNumber int
	Raw       string
	Load      *float64
	Reps      *int
	RPE       *float64
}
