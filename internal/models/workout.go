package models

import (
	"sort"

	"github.com/google/uuid"
)

// Source identifies where a workout record came from.
type Source string

const (
	SourceManual   Source = "manual"
	SourceGravitus Source = "gravitus"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceManual || s == SourceGravitus
}

// Workout is one training session in the uniform shape produced by every
// source decomposer. Work maps an exercise name to its raw set strings in
// the order they were performed.
type Workout struct {
	ID          uuid.UUID           `json:"id,omitzero"`
	Source      Source              `json:"source,omitempty"`
	Title       string              `json:"title"`
	Date        string              `json:"date"`
	Description string              `json:"description,omitempty"`
	URL         string              `json:"url,omitempty"`
	Work        map[string][]string `json:"work"`
}

// Exercises returns the workout's exercise names sorted alphabetically.
func (w Workout) Exercises() []string {
	names := make([]string, 0, len(w.Work))
	for name := range w.Work {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetCount returns the total number of set strings across all exercises.
func (w Workout) SetCount() int {
	n := 0
	for _, sets := range w.Work {
		n += len(sets)
	}
	return n
}
