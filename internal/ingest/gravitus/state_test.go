package gravitus

import (
	"testing"

	"github.com/claude/liftlog/internal/models"
)

// TestStateDBRoundTrip verifies that a cached workout survives reopening.
func TestStateDBRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenStateDB(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok, err := s.Lookup("/workouts/1/"); err != nil || ok {
		t.Fatalf("Lookup on empty db = %v, %v", ok, err)
	}
	w := models.Workout{
		Source: models.SourceGravitus,
		Title:  "Pull",
		Date:   "2022-02-02",
		URL:    "/workouts/1/",
		Work:   map[string][]string{"Deadlift": {"200x3"}},
	}
	if err := s.MarkFetched(w.URL, w); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenStateDB(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, ok, err := s.Lookup("/workouts/1/")
	if err != nil || !ok {
		t.Fatalf("Lookup = %v, %v", ok, err)
	}
	if got.Title != "Pull" || got.Work["Deadlift"][0] != "200x3" {
		t.Errorf("cached workout = %+v", got)
	}
	if n, err := s.Count(); err != nil || n != 1 {
		t.Errorf("Count = %d, %v, want 1", n, err)
	}
}
