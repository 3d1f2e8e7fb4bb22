// Package manual decomposes free-form training log text into workouts.
//
// A log is a series of blocks separated by blank lines:
//
//	01/01/2022: Leg Day
//	Squat: 100kg x5 x3, 110x3 @8
//	RDL: 80x8, 80x8
//
// The first line of a block is "<date>: <title>"; each following line is
// "<exercise>: <items>". "100kg x5 x3" is shorthand for three sets of 100x5.
package manual

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/claude/liftlog/internal/exercises"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/notation"
)

// ErrHeadline is returned for a block whose first line has no colon.
var ErrHeadline = errors.New("headline must be \"<date>: <title>\"")

// Decompose parses a whole log held in memory.
func Decompose(raw string, names *exercises.Renamer) ([]models.Workout, error) {
	return Parse(strings.NewReader(raw), names)
}

// Parse reads a log and returns one workout per block with at least a
// headline and one more line, in input order.
func Parse(r io.Reader, names *exercises.Renamer) ([]models.Workout, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var workouts []models.Workout
	var block []string
	blockNum := 0

	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		blockNum++
		lines := block
		block = nil
		if len(lines) < 2 {
			return nil
		}
		w, err := parseBlock(lines, names)
		if err != nil {
			return fmt.Errorf("block %d: %w", blockNum, err)
		}
		workouts = append(workouts, w)
		return nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Blank line = workout boundary
		if line == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return workouts, nil
}

func parseBlock(lines []string, names *exercises.Renamer) (models.Workout, error) {
	date, title, ok := strings.Cut(lines[0], ":")
	if !ok {
		return models.Workout{}, fmt.Errorf("%q: %w", lines[0], ErrHeadline)
	}

	w := models.Workout{
		Source: models.SourceManual,
		Title:  strings.TrimSpace(title),
		Date:   strings.ReplaceAll(strings.TrimSpace(date), "/", "-"),
		Work:   make(map[string][]string),
	}

	for _, line := range lines[1:] {
		label, items, ok := strings.Cut(line, ":")
		if !ok {
			// Free-text note
			continue
		}
		name := names.Normalize(label)
		if name == "" {
			continue
		}
		// A later line for the same exercise replaces the earlier one.
		w.Work[name] = expand(items)
	}
	return w, nil
}

// expand turns a line's items into canonical set strings, repeating each item
// as many times as its repeat suffix asks for.
func expand(items string) []string {
	sets := []string{}
	for _, s := range notation.ParseItems(items) {
		canonical := s.Canonical()
		for range s.Repeat {
			sets = append(sets, canonical)
		}
	}
	return sets
}
