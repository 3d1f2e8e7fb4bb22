package storage

import (
	"testing"

	"github.com/claude/liftlog/internal/models"
)

// TestTruncInterval verifies bucket names map to date_trunc fields.
func TestTruncInterval(t *testing.T) {
	tests := map[string]string{
		"week":   "week",
		"1 week": "week",
		"month":  "month",
		"":       "month",
		"decade": "month",
	}
	for in, want := range tests {
		if got := truncInterval(in); got != want {
			t.Errorf("truncInterval(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestMergeVolume verifies pound sources are converted before summing and
// periods come out newest first.
func TestMergeVolume(t *testing.T) {
	rows := []TrainingPeriod{
		{Period: "2024-03-04", Source: "manual", Sessions: 1, Sets: 3, Reps: 15, Tonnage: 1500},
		{Period: "2024-03-04", Source: "gravitus", Sessions: 1, Sets: 1, Reps: 5, Tonnage: 2204.6226218},
		{Period: "2024-02-26", Source: "manual", Sessions: 2, Sets: 4, Reps: 20, Tonnage: 2000},
	}
	toKg := func(s models.Source) bool { return s == models.SourceGravitus }

	got := MergeVolume(rows, toKg, false)
	if len(got) != 2 {
		t.Fatalf("got %d periods, want 2", len(got))
	}
	if got[0].Period != "2024-03-04" {
		t.Errorf("first period = %s, want 2024-03-04", got[0].Period)
	}
	if got[0].Tonnage != 2500 {
		t.Errorf("tonnage = %v, want 2500", got[0].Tonnage)
	}
	if got[0].Sessions != 2 || got[0].Sets != 4 || got[0].Reps != 20 {
		t.Errorf("counts = %+v, want 2 sessions, 4 sets, 20 reps", got[0])
	}

	lb := MergeVolume(rows[2:], toKg, true)
	if lb[0].Tonnage != 4409.2 {
		t.Errorf("imperial tonnage = %v, want 4409.2", lb[0].Tonnage)
	}
}
