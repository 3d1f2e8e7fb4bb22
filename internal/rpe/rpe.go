// Package rpe holds the reps x RPE percentage table used to estimate a
// one-rep max from a submaximal set.
package rpe

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Clamp bounds. Reps outside [MinReps, MaxReps] are read from the MaxReps row
// and any RPE below MinRPE (or no RPE at all) is read from the MinRPE column.
const (
	MinReps = 1
	MaxReps = 10
	MinRPE  = 6.5
	MaxRPE  = 10
)

// ErrNotInTable is returned when a clamped (reps, rpe) pair has no cell.
// With a complete table this only happens for RPE values off the half-point
// grid or above MaxRPE.
var ErrNotInTable = errors.New("no rpe table entry")

//go:embed table.json
var defaultTable []byte

// Table maps reps -> RPE -> percentage of one-rep max. A Table is read-only
// once constructed and safe for concurrent use.
type Table struct {
	cells map[int]map[float64]int
}

// New builds a Table from raw cells. The map is copied; no completeness check
// is made, so synthetic partial tables can be used in tests.
func New(cells map[int]map[float64]int) *Table {
	t := &Table{cells: make(map[int]map[float64]int, len(cells))}
	for reps, row := range cells {
		r := make(map[float64]int, len(row))
		for k, v := range row {
			r[k] = v
		}
		t.cells[reps] = r
	}
	return t
}

// Default returns the standard RPE table.
func Default() *Table {
	t, err := Load(strings.NewReader(string(defaultTable)))
	if err != nil {
		panic(fmt.Sprintf("embedded rpe table: %v", err))
	}
	return t
}

// Load reads a table persisted as {"<reps>": {"<rpe>": <percent>}} and checks
// that every cell of the reps 1..10 x RPE 6.5..10 grid is present.
func Load(r io.Reader) (*Table, error) {
	var raw map[string]map[string]int
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding rpe table: %w", err)
	}

	cells := make(map[int]map[float64]int, len(raw))
	for repsKey, row := range raw {
		reps, err := strconv.Atoi(strings.TrimSpace(repsKey))
		if err != nil {
			return nil, fmt.Errorf("reps key %q: %w", repsKey, err)
		}
		cells[reps] = make(map[float64]int, len(row))
		for rpeKey, pct := range row {
			v, err := ParseRPE(rpeKey)
			if err != nil {
				return nil, fmt.Errorf("rpe key %q for %d reps: %w", rpeKey, reps, err)
			}
			if pct <= 0 || pct > 100 {
				return nil, fmt.Errorf("percentage %d for %d reps @%s out of range", pct, reps, rpeKey)
			}
			cells[reps][v] = pct
		}
	}

	t := &Table{cells: cells}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadFile reads a table from a JSON file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rpe table: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate reports the first missing cell of the standard grid.
func (t *Table) Validate() error {
	for reps := MinReps; reps <= MaxReps; reps++ {
		for _, v := range Steps() {
			if _, ok := t.Percent(reps, v); !ok {
				return fmt.Errorf("incomplete table: %d reps @%g: %w", reps, v, ErrNotInTable)
			}
		}
	}
	return nil
}

// Steps returns the RPE columns of the standard grid, highest first.
func Steps() []float64 {
	var steps []float64
	for v := MaxRPE * 2; v >= MinRPE*2; v-- {
		steps = append(steps, float64(v)/2)
	}
	return steps
}

// Percent returns the raw cell for (reps, rpe) without clamping.
func (t *Table) Percent(reps int, rpe float64) (int, bool) {
	row, ok := t.cells[reps]
	if !ok {
		return 0, false
	}
	pct, ok := row[rpe]
	return pct, ok
}

// Reps returns the rep counts present in the table, ascending.
func (t *Table) Reps() []int {
	reps := make([]int, 0, len(t.cells))
	for r := range t.cells {
		reps = append(reps, r)
	}
	slices.Sort(reps)
	return reps
}

// Estimate1RM projects a one-rep max from load lifted for reps at rpe.
// Reps outside 1..10 are treated as 10 and a nil or sub-6.5 RPE as 6.5; this
// floor/ceiling is intentional and never an error.
func (t *Table) Estimate1RM(load float64, reps int, rpe *float64) (float64, error) {
	reps, r := Clamp(reps, rpe)
	pct, ok := t.Percent(reps, r)
	if !ok || pct == 0 {
		return 0, fmt.Errorf("%d reps @%g: %w", reps, r, ErrNotInTable)
	}
	return 100 * load / float64(pct), nil
}

// Clamp applies the table's boundary policy to a (reps, rpe) pair.
func Clamp(reps int, rpe *float64) (int, float64) {
	if reps < MinReps || reps > MaxReps {
		reps = MaxReps
	}
	r := MinRPE
	if rpe != nil && *rpe >= MinRPE {
		r = *rpe
	}
	return reps, r
}

// ParseReps coerces a textual rep count.
func ParseReps(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parsing reps %q: %w", s, err)
	}
	return n, nil
}

// ParseRPE coerces a textual RPE, accepting a comma decimal separator.
// Whole values ("9", "9.0") compare equal to the integer column keys.
func ParseRPE(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing rpe %q: %w", s, err)
	}
	return v, nil
}
