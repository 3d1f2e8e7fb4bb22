package performance

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/rpe"
)

func workout(title, date string, work map[string][]string) models.Workout {
	return models.Workout{Title: title, Date: date, Work: work}
}

var history = []models.Workout{
	workout("Heavy", "2022-01-10", map[string][]string{"Squat": {"140x3 @8", "150x1 @9"}}),
	workout("Volume", "03-01-2022", map[string][]string{"Squat": {"100x5", "100x3"}, "Bench": {"80x5"}}),
	workout("Push", "2022-01-05", map[string][]string{"Bench": {"82.5x5 @9"}}),
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

// TestTonnage verifies tonnage sums load*reps: 100*5+100*3 = 800.
func TestTonnage(t *testing.T) {
	e := NewEngine(rpe.Default())
	s, err := e.History("Squat", history, ModeTonnage, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != 2 {
		t.Fatalf("points = %d, want 2", len(s))
	}
	if !s[0].Date.Equal(day("2022-01-03")) || s[0].Value != 800 {
		t.Errorf("first point = %s %v, want 2022-01-03 800", s[0].Day(), s[0].Value)
	}
	if s[1].Value != 140*3+150*1 {
		t.Errorf("second point = %v, want 570", s[1].Value)
	}
}

// TestSortedAscending verifies mixed date formats are parsed and sorted.
func TestSortedAscending(t *testing.T) {
	e := NewEngine(rpe.Default())
	s, err := e.History("Bench", history, ModeTopSet, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != 2 || s[0].Day() != "2022-01-03" || s[1].Day() != "2022-01-05" {
		t.Errorf("series = %+v", s)
	}
	if s[1].Value != 82.5 {
		t.Errorf("top set = %v, want 82.5", s[1].Value)
	}
}

// TestE1RM verifies the best per-set estimate is used, with the clamp policy for missing RPE.
func TestE1RM(t *testing.T) {
	tbl := rpe.Default()
	e := NewEngine(tbl)
	s, err := e.History("Squat", history, ModeE1RM, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 2022-01-03: 100x5 with no RPE reads 5 reps @6.5 = 77%.
	if want := 100 * 100.0 / 77; math.Abs(s[0].Value-want) > 1e-9 {
		t.Errorf("volume e1RM = %v, want %v", s[0].Value, want)
	}
	// 2022-01-10: max(140/0.86, 150/0.96).
	want := max(100*140.0/86, 100*150.0/96)
	if math.Abs(s[1].Value-want) > 1e-9 {
		t.Errorf("heavy e1RM = %v, want %v", s[1].Value, want)
	}
}

// TestE1RMMissingReps verifies a set without reps is clamped to the 10-rep row.
func TestE1RMMissingReps(t *testing.T) {
	e := NewEngine(rpe.New(map[int]map[float64]int{10: {6.5: 50}}))
	w := []models.Workout{workout("x", "2022-02-01", map[string][]string{"Row": {"60x"}})}
	s, err := e.History("Row", w, ModeE1RM, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s[0].Value != 120 {
		t.Errorf("e1RM = %v, want 120", s[0].Value)
	}
}

// TestTopSingle verifies only one-rep sets count and workouts without singles are skipped.
func TestTopSingle(t *testing.T) {
	e := NewEngine(rpe.Default())
	s, err := e.History("Squat", history, ModeTopSingle, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != 1 || s[0].Value != 150 || s[0].Day() != "2022-01-10" {
		t.Errorf("series = %+v, want one point 150 on 2022-01-10", s)
	}
}

// TestAbsentExercise verifies an unknown exercise yields the empty series and no error.
func TestAbsentExercise(t *testing.T) {
	e := NewEngine(rpe.Default())
	for _, m := range Modes() {
		s, err := e.History("Curl", history, m, true)
		if err != nil {
			t.Fatalf("mode %s: unexpected error: %v", m, err)
		}
		if !s.Empty() {
			t.Errorf("mode %s: series = %+v, want empty", m, s)
		}
	}
}

// TestInvalidMode verifies unknown modes fail immediately, even with no workouts.
func TestInvalidMode(t *testing.T) {
	e := NewEngine(rpe.Default())
	if _, err := e.History("Squat", nil, Mode("volume"), false); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("History error = %v, want ErrInvalidMode", err)
	}
	if _, err := ParseMode("e1rm"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("ParseMode error = %v, want ErrInvalidMode", err)
	}
	if m, err := ParseMode("top-set"); err != nil || m != ModeTopSet {
		t.Errorf("ParseMode(top-set) = %q, %v", m, err)
	}
}

// TestBadDate verifies an unparsable date is propagated, not defaulted.
func TestBadDate(t *testing.T) {
	e := NewEngine(rpe.Default())
	w := []models.Workout{workout("Legs", "Jan 3rd", map[string][]string{"Squat": {"100x5"}})}
	if _, err := e.History("Squat", w, ModeTopSet, false); !errors.Is(err, ErrBadDate) {
		t.Errorf("error = %v, want ErrBadDate", err)
	}
}

// TestParseDateUnpadded verifies day-first dates parse with or without
// zero padding.
func TestParseDateUnpadded(t *testing.T) {
	for _, in := range []string{"1-2-2022", "01-02-2022", "2022-02-01"} {
		got, err := ParseDate(in)
		if err != nil {
			t.Errorf("ParseDate(%q) error: %v", in, err)
			continue
		}
		if !got.Equal(day("2022-02-01")) {
			t.Errorf("ParseDate(%q) = %v, want 2022-02-01", in, got)
		}
	}
}

// TestEmptySetList verifies an exercise logged with no sets yields a zero
// point for e1RM, top-set and tonnage but no top single.
func TestEmptySetList(t *testing.T) {
	e := NewEngine(rpe.Default())
	w := []models.Workout{workout("Legs", "2022-02-01", map[string][]string{"Squat": {}})}
	for _, m := range []Mode{ModeE1RM, ModeTopSet, ModeTonnage} {
		s, err := e.History("Squat", w, m, false)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", m, err)
		}
		if len(s) != 1 || s[0].Value != 0 || !s[0].Date.Equal(day("2022-02-01")) {
			t.Errorf("%s = %v, want one zero point on 2022-02-01", m, s)
		}
	}
	s, err := e.History("Squat", w, ModeTopSingle, false)
	if err != nil || len(s) != 0 {
		t.Errorf("top-single = %v, %v, want empty", s, err)
	}
}

// TestTonnageIncompleteSet verifies tonnage refuses sets missing load or reps.
func TestTonnageIncompleteSet(t *testing.T) {
	e := NewEngine(rpe.Default())
	w := []models.Workout{workout("Legs", "2022-01-01", map[string][]string{"Squat": {"100x5", "100 @8"}})}
	if _, err := e.History("Squat", w, ModeTonnage, false); !errors.Is(err, ErrIncompleteSet) {
		t.Errorf("error = %v, want ErrIncompleteSet", err)
	}
	// top-set only needs the load, which "x5" lacks.
	w[0].Work["Squat"] = []string{"x5"}
	if _, err := e.History("Squat", w, ModeTopSet, false); !errors.Is(err, ErrIncompleteSet) {
		t.Errorf("top-set error = %v, want ErrIncompleteSet", err)
	}
}

// TestLastWriteWins verifies a later workout on the same date replaces the earlier value.
func TestLastWriteWins(t *testing.T) {
	e := NewEngine(rpe.Default())
	w := []models.Workout{
		workout("AM", "2022-03-01", map[string][]string{"Squat": {"100x5"}}),
		workout("PM", "01-03-2022", map[string][]string{"Squat": {"60x5"}}),
	}
	s, err := e.History("Squat", w, ModeTonnage, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != 1 || s[0].Value != 300 {
		t.Errorf("series = %+v, want single point 300", s)
	}
}

// TestConvertToKg verifies pound loads are converted before reduction.
func TestConvertToKg(t *testing.T) {
	e := NewEngine(rpe.Default())
	w := []models.Workout{workout("x", "2022-01-01", map[string][]string{"Deadlift": {"308.65x1"}})}
	s, err := e.History("Deadlift", w, ModeTopSet, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s[0].Value != 140.0 {
		t.Errorf("top set = %v, want 140.0", s[0].Value)
	}
}

// TestBySourcePolicy verifies mixed-source collections convert only pound sources.
func TestBySourcePolicy(t *testing.T) {
	e := NewEngine(rpe.Default())
	w := []models.Workout{
		{Source: models.SourceGravitus, Title: "g", Date: "2022-01-01", Work: map[string][]string{"Squat": {"220.5x1"}}},
		{Source: models.SourceManual, Title: "m", Date: "2022-01-02", Work: map[string][]string{"Squat": {"100x1"}}},
	}
	s, err := e.HistoryWith("Squat", w, ModeTopSet, BySource(models.SourceGravitus))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s[0].Value != 100.0 || s[1].Value != 100 {
		t.Errorf("series = %+v, want 100 both days", s)
	}
}

// TestInputsNotMutated verifies the engine leaves workouts untouched.
func TestInputsNotMutated(t *testing.T) {
	e := NewEngine(rpe.Default())
	w := []models.Workout{workout("x", "2022-01-01", map[string][]string{"Squat": {"308.65x1"}})}
	if _, err := e.History("Squat", w, ModeE1RM, true); err != nil {
		t.Fatal(err)
	}
	if w[0].Work["Squat"][0] != "308.65x1" {
		t.Errorf("input mutated: %v", w[0].Work)
	}
}

// TestSeriesByExercise verifies every exercise gets its own series.
func TestSeriesByExercise(t *testing.T) {
	e := NewEngine(rpe.Default())
	all, err := e.SeriesByExercise(history, ModeTopSet, Uniform(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 || len(all["Squat"]) != 2 || len(all["Bench"]) != 2 {
		t.Errorf("series = %+v", all)
	}
}

// TestSeriesHelpers verifies Max, Last, Between and ToImperial.
func TestSeriesHelpers(t *testing.T) {
	s := Series{
		{Date: day("2022-01-01"), Value: 100},
		{Date: day("2022-01-08"), Value: 120},
		{Date: day("2022-01-15"), Value: 110},
	}
	if p, _ := s.Max(); p.Value != 120 {
		t.Errorf("Max = %v, want 120", p.Value)
	}
	if p, _ := s.Last(); p.Value != 110 {
		t.Errorf("Last = %v, want 110", p.Value)
	}
	if got := s.Between(day("2022-01-02"), day("2022-01-15")); len(got) != 1 || got[0].Value != 120 {
		t.Errorf("Between = %+v", got)
	}
	if got := s.ToImperial(); got[0].Value != 220.5 {
		t.Errorf("ToImperial = %v, want 220.5", got[0].Value)
	}
	if _, ok := (Series{}).Max(); ok {
		t.Error("Max on empty series should report false")
	}
}

// TestPointJSON verifies points serialize with an ISO date and read back.
func TestPointJSON(t *testing.T) {
	data, err := json.Marshal(Series{{Date: day("2022-01-03"), Value: 800}})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `[{"date":"2022-01-03","value":800}]` {
		t.Errorf("json = %s", data)
	}
	var back Series
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back[0].Date.Equal(day("2022-01-03")) || back[0].Value != 800 {
		t.Errorf("decoded = %+v", back)
	}
}

// TestSeriesTable verifies CLI rows are day strings with one-decimal values.
func TestSeriesTable(t *testing.T) {
	s := Series{
		{Date: time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), Value: 172.84},
		{Date: time.Date(2021, 3, 6, 0, 0, 0, 0, time.UTC), Value: 180},
	}
	rows := s.Table()
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0][0] != "2021-03-04" || rows[0][1] != "172.8" {
		t.Errorf("rows[0] = %v, want [2021-03-04 172.8]", rows[0])
	}
	if rows[1][1] != "180" {
		t.Errorf("rows[1][1] = %q, want 180", rows[1][1])
	}
}
