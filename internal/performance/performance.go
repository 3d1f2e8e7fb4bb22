// Package performance derives per-exercise time series (e1RM, top set,
// tonnage, top single) from decomposed workouts.
package performance

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/notation"
	"github.com/claude/liftlog/internal/rpe"
	"github.com/claude/liftlog/internal/units"
)

// Mode selects how a workout's sets reduce to one value.
type Mode string

const (
	ModeE1RM      Mode = "e1RM"
	ModeTopSet    Mode = "top-set"
	ModeTonnage   Mode = "tonnage"
	ModeTopSingle Mode = "top-single"
)

var (
	ErrInvalidMode   = errors.New("invalid performance mode")
	ErrBadDate       = errors.New("unrecognized workout date")
	ErrIncompleteSet = errors.New("set is missing load or reps")
)

// Date layouts tried in order: ISO first, then the day-first manual log form.
var dateLayouts = []string{"2006-01-02", "2-1-2006"}

// Modes lists every recognized mode.
func Modes() []Mode {
	return []Mode{ModeE1RM, ModeTopSet, ModeTonnage, ModeTopSingle}
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidMode)
}

// Point is one workout date's metric value.
type Point struct {
	Date  time.Time
	Value float64
}

// Day formats the point's date as YYYY-MM-DD.
func (p Point) Day() string {
	return p.Date.Format("2006-01-02")
}

type pointJSON struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointJSON{Date: p.Day(), Value: p.Value})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var raw pointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d, err := ParseDate(raw.Date)
	if err != nil {
		return err
	}
	p.Date, p.Value = d, raw.Value
	return nil
}

// Series is sorted ascending by date. An empty series means no workout
// contained the exercise.
type Series []Point

// Empty reports whether the series has no points.
func (s Series) Empty() bool {
	return len(s) == 0
}

// Last returns the most recent point.
func (s Series) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// Max returns the point with the highest value, earliest on ties.
func (s Series) Max() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	best := s[0]
	for _, p := range s[1:] {
		if p.Value > best.Value {
			best = p
		}
	}
	return best, true
}

// Between returns the points with start <= date < end. Zero bounds are open.
func (s Series) Between(start, end time.Time) Series {
	out := Series{}
	for _, p := range s {
		if !start.IsZero() && p.Date.Before(start) {
			continue
		}
		if !end.IsZero() && !p.Date.Before(end) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ToImperial converts every value from kg to lb. Tonnage is converted the
// same way since it is load times a unitless count.
func (s Series) ToImperial() Series {
	out := make(Series, len(s))
	for i, p := range s {
		out[i] = Point{Date: p.Date, Value: units.KgToLb(p.Value)}
	}
	return out
}

// Table renders the series as date and value rows, values rounded to one
// decimal.
func (s Series) Table() [][]string {
	rows := make([][]string, len(s))
	for i, p := range s {
		rows[i] = []string{p.Day(), strconv.FormatFloat(units.Round(p.Value, units.DefaultPrecision), 'f', -1, 64)}
	}
	return rows
}

// UnitPolicy decides per workout whether its loads are pounds to be
// converted to kilograms.
type UnitPolicy func(w models.Workout) bool

// Uniform returns a policy that answers convertToKg for every workout.
func Uniform(convertToKg bool) UnitPolicy {
	return func(models.Workout) bool { return convertToKg }
}

// BySource converts workouts whose source is in pounds.
func BySource(poundSources ...models.Source) UnitPolicy {
	return func(w models.Workout) bool {
		for _, s := range poundSources {
			if w.Source == s {
				return true
			}
		}
		return false
	}
}

// Engine computes performance series. It never mutates its inputs.
type Engine struct {
	table *rpe.Table
}

// NewEngine creates an Engine reading e1RM percentages from table.
func NewEngine(table *rpe.Table) *Engine {
	return &Engine{table: table}
}

// History returns one value per workout date for exercise under mode.
// Workouts on the same calendar date overwrite earlier ones (last write
// wins). An exercise found in no workout yields an empty series and no error.
func (e *Engine) History(exercise string, workouts []models.Workout, mode Mode, convertToKg bool) (Series, error) {
	return e.HistoryWith(exercise, workouts, mode, Uniform(convertToKg))
}

// HistoryWith is History with a per-workout unit policy, for collections
// mixing sources recorded in different units.
func (e *Engine) HistoryWith(exercise string, workouts []models.Workout, mode Mode, policy UnitPolicy) (Series, error) {
	reduce, err := e.reducer(mode)
	if err != nil {
		return nil, err
	}

	byDate := make(map[time.Time]float64)
	for _, w := range workouts {
		sets, ok := w.Work[exercise]
		if !ok {
			continue
		}
		date, err := ParseDate(w.Date)
		if err != nil {
			return nil, fmt.Errorf("workout %q: %w", w.Title, err)
		}

		parsed := make([]notation.Set, len(sets))
		convert := policy(w)
		for i, token := range sets {
			parsed[i] = notation.ParseSet(token, convert)
		}

		v, ok, err := reduce(parsed)
		if err != nil {
			return nil, fmt.Errorf("workout %q on %s: %w", w.Title, w.Date, err)
		}
		if !ok {
			continue
		}
		byDate[date] = v
	}

	series := make(Series, 0, len(byDate))
	for d, v := range byDate {
		series = append(series, Point{Date: d, Value: v})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})
	return series, nil
}

// SeriesByExercise computes History for every exercise name in workouts.
func (e *Engine) SeriesByExercise(workouts []models.Workout, mode Mode, policy UnitPolicy) (map[string]Series, error) {
	names := make(map[string]bool)
	for _, w := range workouts {
		for name := range w.Work {
			names[name] = true
		}
	}
	out := make(map[string]Series, len(names))
	for name := range names {
		s, err := e.HistoryWith(name, workouts, mode, policy)
		if err != nil {
			return nil, fmt.Errorf("exercise %q: %w", name, err)
		}
		out[name] = s
	}
	return out, nil
}

// ParseDate accepts "YYYY-MM-DD" or "DD-MM-YYYY"; day and month may be
// unpadded.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q: %w", s, ErrBadDate)
}

// reducer folds a workout's parsed sets into one value. ok is false when the
// workout contributes no point.
type reducer func(sets []notation.Set) (v float64, ok bool, err error)

func (e *Engine) reducer(mode Mode) (reducer, error) {
	switch mode {
	case ModeE1RM:
		return e.e1RM, nil
	case ModeTopSet:
		return topSet, nil
	case ModeTonnage:
		return tonnage, nil
	case ModeTopSingle:
		return topSingle, nil
	}
	return nil, fmt.Errorf("%q: %w", mode, ErrInvalidMode)
}

// e1RM is the best estimate over all sets. Missing reps or RPE go through
// the table's clamp policy; a missing load cannot be estimated.
func (e *Engine) e1RM(sets []notation.Set) (float64, bool, error) {
	best := 0.0
	for i, s := range sets {
		if s.Load == nil {
			return 0, false, fmt.Errorf("set %d: %w", i+1, ErrIncompleteSet)
		}
		reps := 0
		if s.Reps != nil {
			reps = *s.Reps
		}
		v, err := e.table.Estimate1RM(*s.Load, reps, s.RPE)
		if err != nil {
			return 0, false, fmt.Errorf("set %d: %w", i+1, err)
		}
		best = max(best, v)
	}
	return best, true, nil
}

func topSet(sets []notation.Set) (float64, bool, error) {
	best := 0.0
	for i, s := range sets {
		if s.Load == nil {
			return 0, false, fmt.Errorf("set %d: %w", i+1, ErrIncompleteSet)
		}
		best = max(best, *s.Load)
	}
	return best, true, nil
}

func tonnage(sets []notation.Set) (float64, bool, error) {
	total := 0.0
	for i, s := range sets {
		if !s.Complete() {
			return 0, false, fmt.Errorf("set %d: %w", i+1, ErrIncompleteSet)
		}
		total += *s.Load * float64(*s.Reps)
	}
	return total, true, nil
}

// topSingle is the heaviest set of exactly one rep. Workouts without a
// single contribute no point; other incomplete sets are ignored.
func topSingle(sets []notation.Set) (float64, bool, error) {
	best, found := 0.0, false
	for _, s := range sets {
		if s.Load == nil || s.Reps == nil || *s.Reps != 1 {
			continue
		}
		if !found || *s.Load > best {
			best, found = *s.Load, true
		}
	}
	return best, found, nil
}
