package mcp

import (
	"context"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	QueryWorkouts(ctx context.Context, start, end time.Time, userID int, exercise string) ([]models.Workout, error)
	ListExercises(ctx context.Context, userID int) ([]storage.ExerciseSummary, error)
	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
	GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingPeriod, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
