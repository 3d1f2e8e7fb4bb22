package manual

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/claude/liftlog/internal/exercises"
	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/models"
)

// Provider processes manual training log uploads.
type Provider struct {
	store   ingest.WorkoutWriter
	names   *exercises.Renamer
	metrics *metrics.Manager
	log     *slog.Logger
}

// NewProvider creates a new manual log ingest provider.
func NewProvider(store ingest.WorkoutWriter, names *exercises.Renamer, m *metrics.Manager, log *slog.Logger) *Provider {
	return &Provider{store: store, names: names, metrics: m, log: log}
}

// Ingest decomposes a log and stores the resulting workouts.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, userID int) (*ingest.Result, error) {
	workouts, err := Parse(r, p.names)
	if err != nil {
		p.metrics.IngestFailed(models.SourceManual)
		return nil, fmt.Errorf("parsing log: %w", err)
	}

	result := &ingest.Result{Source: models.SourceManual, WorkoutsReceived: len(workouts)}
	for _, w := range workouts {
		result.SetsReceived += w.SetCount()
	}
	p.metrics.WorkoutsParsed(models.SourceManual, len(workouts), result.SetsReceived)

	if len(workouts) == 0 {
		result.Message = "no workouts found"
		return result, nil
	}

	ws, err := p.store.ReplaceWorkouts(ctx, userID, models.SourceManual, workouts)
	if err != nil {
		p.metrics.IngestFailed(models.SourceManual)
		return nil, fmt.Errorf("storing workouts: %w", err)
	}
	result.Fill(ws)

	p.log.Info("manual log ingested",
		"user_id", userID,
		"workouts", result.WorkoutsReceived,
		"sets", result.SetsReceived,
		"dates_replaced", result.DatesReplaced,
	)
	return result, nil
}
