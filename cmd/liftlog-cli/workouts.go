package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/claude/liftlog/internal/exercises"
	"github.com/claude/liftlog/internal/ingest/manual"
	"github.com/claude/liftlog/internal/models"
)

// loadWorkouts reads every path as either a JSON workout array (.json) or a
// manual training log (anything else), in argument order.
func loadWorkouts(paths []string, names *exercises.Renamer) ([]models.Workout, error) {
	var all []models.Workout
	for _, path := range paths {
		ws, err := loadFile(path, names)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, ws...)
	}
	return all, nil
}

func loadFile(path string, names *exercises.Renamer) ([]models.Workout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var ws []models.Workout
		if err := json.NewDecoder(f).Decode(&ws); err != nil {
			return nil, fmt.Errorf("decoding workouts: %w", err)
		}
		return ws, nil
	}
	return manual.Parse(f, names)
}
