package ingest

import (
	"context"

	"github.com/claude/liftlog/internal/models"
)

// Result holds the outcome of an ingest operation.
type Result struct {
	Source           models.Source `json:"source"`
	WorkoutsReceived int           `json:"workouts_received"`
	WorkoutsInserted int64         `json:"workouts_inserted"`
	SetsReceived     int           `json:"sets_received"`
	SetsInserted     int64         `json:"sets_inserted"`
	DatesReplaced    int           `json:"dates_replaced,omitempty"`

	Message string `json:"message,omitempty"`
}

// WorkoutWriter persists decomposed workouts. Existing workouts from the same
// source on the same dates are replaced so re-imports reflect the latest parse.
type WorkoutWriter interface {
	ReplaceWorkouts(ctx context.Context, userID int, source models.Source, workouts []models.Workout) (*WriteStats, error)
}

// WriteStats reports what a WorkoutWriter changed.
type WriteStats struct {
	WorkoutsInserted int64
	SetsInserted     int64
	DatesReplaced    int
}

// Fill copies write stats into the result.
func (r *Result) Fill(ws *WriteStats) {
	if ws == nil {
		return
	}
	r.WorkoutsInserted = ws.WorkoutsInserted
	r.SetsInserted = ws.SetsInserted
	r.DatesReplaced = ws.DatesReplaced
}
