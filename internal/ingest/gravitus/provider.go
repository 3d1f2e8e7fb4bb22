package gravitus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/claude/liftlog/internal/exercises"
	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/performance"
)

// Provider stores workout records produced by the scraper.
type Provider struct {
	store   ingest.WorkoutWriter
	names   *exercises.Renamer // nil keeps site names untouched
	metrics *metrics.Manager
	log     *slog.Logger
}

// NewProvider creates a new Gravitus ingest provider. Passing a non-nil
// renamer applies the same name normalization as manual logs.
func NewProvider(store ingest.WorkoutWriter, names *exercises.Renamer, m *metrics.Manager, log *slog.Logger) *Provider {
	return &Provider{store: store, names: names, metrics: m, log: log}
}

// Ingest reads a JSON array of workouts and stores them.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, userID int) (*ingest.Result, error) {
	var workouts []models.Workout
	if err := json.NewDecoder(r).Decode(&workouts); err != nil {
		p.metrics.IngestFailed(models.SourceGravitus)
		return nil, fmt.Errorf("decoding workouts: %w", err)
	}
	return p.Store(ctx, workouts, userID)
}

// Store validates and stores already decoded workouts.
func (p *Provider) Store(ctx context.Context, workouts []models.Workout, userID int) (*ingest.Result, error) {
	for i := range workouts {
		if _, err := performance.ParseDate(workouts[i].Date); err != nil {
			p.metrics.IngestFailed(models.SourceGravitus)
			return nil, fmt.Errorf("workout %d (%s): %w", i, workouts[i].URL, err)
		}
		workouts[i].Source = models.SourceGravitus
		if p.names != nil {
			workouts[i].Work = p.rename(workouts[i].Work)
		}
	}

	result := &ingest.Result{Source: models.SourceGravitus, WorkoutsReceived: len(workouts)}
	for _, w := range workouts {
		result.SetsReceived += w.SetCount()
	}
	p.metrics.WorkoutsParsed(models.SourceGravitus, len(workouts), result.SetsReceived)

	if len(workouts) == 0 {
		result.Message = "no workouts found"
		return result, nil
	}

	ws, err := p.store.ReplaceWorkouts(ctx, userID, models.SourceGravitus, workouts)
	if err != nil {
		p.metrics.IngestFailed(models.SourceGravitus)
		return nil, fmt.Errorf("storing workouts: %w", err)
	}
	result.Fill(ws)

	p.log.Info("gravitus workouts ingested",
		"user_id", userID,
		"workouts", result.WorkoutsReceived,
		"sets", result.SetsReceived,
		"dates_replaced", result.DatesReplaced,
	)
	return result, nil
}

func (p *Provider) rename(work map[string][]string) map[string][]string {
	out := make(map[string][]string, len(work))
	for name, sets := range work {
		n := p.names.Normalize(name)
		out[n] = append(out[n], sets...)
	}
	return out
}
