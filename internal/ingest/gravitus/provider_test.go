package gravitus

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/claude/liftlog/internal/exercises"
	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/performance"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type memWriter struct {
	source   models.Source
	workouts []models.Workout
}

func (m *memWriter) ReplaceWorkouts(ctx context.Context, userID int, source models.Source, workouts []models.Workout) (*ingest.WriteStats, error) {
	m.source, m.workouts = source, workouts
	return &ingest.WriteStats{WorkoutsInserted: int64(len(workouts))}, nil
}

const scraped = `[
  {"title": "Heavy", "date": "2021-03-04", "url": "/workouts/1/", "work": {"Squats": ["140x5", "140x5"]}},
  {"title": "Light", "date": "2021-03-06", "url": "/workouts/2/", "work": {"bench pressing": ["80x8"]}}
]`

// TestProviderIngestKeepsNames verifies that scraped names pass through
// untouched without a renamer and that the source is forced to gravitus.
func TestProviderIngestKeepsNames(t *testing.T) {
	w := &memWriter{}
	m := metrics.NewTestManager()
	p := NewProvider(w, nil, m, quietLog())

	result, err := p.Ingest(context.Background(), strings.NewReader(scraped), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.WorkoutsReceived != 2 || result.SetsReceived != 3 {
		t.Errorf("result = %+v", result)
	}
	if w.source != models.SourceGravitus || w.workouts[0].Source != models.SourceGravitus {
		t.Errorf("source not forced to gravitus")
	}
	if _, ok := w.workouts[0].Work["Squats"]; !ok {
		t.Errorf("work = %v, want raw name Squats", w.workouts[0].Work)
	}
	if got := testutil.ToFloat64(m.CounterSets.WithLabelValues("gravitus")); got != 3 {
		t.Errorf("sets counter = %v, want 3", got)
	}
}

// TestProviderIngestRenames verifies optional name normalization.
func TestProviderIngestRenames(t *testing.T) {
	w := &memWriter{}
	p := NewProvider(w, exercises.Default(), nil, quietLog())

	if _, err := p.Ingest(context.Background(), strings.NewReader(scraped), 1); err != nil {
		t.Fatal(err)
	}
	if _, ok := w.workouts[0].Work["Squat"]; !ok {
		t.Errorf("work = %v, want Squat", w.workouts[0].Work)
	}
	if _, ok := w.workouts[1].Work["Bench Press"]; !ok {
		t.Errorf("work = %v, want Bench Press", w.workouts[1].Work)
	}
}

// TestProviderIngestBadDate verifies that records with unusable dates are
// rejected before anything is stored.
func TestProviderIngestBadDate(t *testing.T) {
	w := &memWriter{}
	m := metrics.NewTestManager()
	p := NewProvider(w, nil, m, quietLog())

	_, err := p.Ingest(context.Background(), strings.NewReader(`[{"title":"x","date":"last week"}]`), 1)
	if !errors.Is(err, performance.ErrBadDate) {
		t.Errorf("err = %v, want ErrBadDate", err)
	}
	if w.workouts != nil {
		t.Error("nothing should be stored")
	}
	if got := testutil.ToFloat64(m.CounterIngestFails.WithLabelValues("gravitus")); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
}

// TestProviderIngestBadJSON verifies malformed bodies are errors.
func TestProviderIngestBadJSON(t *testing.T) {
	p := NewProvider(&memWriter{}, nil, nil, quietLog())
	if _, err := p.Ingest(context.Background(), strings.NewReader(`{`), 1); err == nil {
		t.Error("expected error")
	}
}
