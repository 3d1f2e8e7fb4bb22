// Package upload pushes local training logs and scraped Gravitus workouts to
// a LiftLog server, skipping files already pushed with identical content.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/claude/liftlog/internal/ingest/manual"
	"github.com/claude/liftlog/internal/models"
)

// Stats tracks upload progress.
type Stats struct {
	FilesTotal   int
	FilesPushed  int
	FilesSkipped int
	FilesErrored int

	WorkoutsSent int
	SetsSent     int
}

// Kind is the ingest route a file is pushed to.
type Kind int

const (
	KindUnknown  Kind = iota
	KindLog           // plain-text training log
	KindWorkouts      // JSON array of decomposed workouts
)

// Classify picks the ingest route for a file by extension.
func Classify(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".log", ".md":
		return KindLog
	case ".json":
		return KindWorkouts
	default:
		return KindUnknown
	}
}

// Uploader walks files or directories and POSTs their contents to the server.
type Uploader struct {
	client *Client
	state  *StateDB
	dryRun bool
	log    *slog.Logger
	stats  Stats
}

// New creates a new Uploader. client may be nil in dry-run mode and state
// may be nil to push every file unconditionally.
func New(client *Client, state *StateDB, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		state:  state,
		dryRun: dryRun,
		log:    log,
	}
}

// Run pushes every recognised file under paths. A failing file is counted and
// logged; the walk continues. Only cancellation aborts the run.
func (u *Uploader) Run(ctx context.Context, paths ...string) (*Stats, error) {
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			kind := Classify(path)
			if kind == KindUnknown || skipName(d.Name()) {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			u.stats.FilesTotal++
			if err := u.processFile(ctx, path, kind); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				u.stats.FilesErrored++
				u.log.Error("push failed", "file", path, "error", err)
			}
			return nil
		})
		if err != nil {
			return &u.stats, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	return &u.stats, nil
}

// skipName drops scraper bookkeeping files that are not workout arrays.
func skipName(name string) bool {
	switch name {
	case "workout_url.json", "not_downloaded_url.json":
		return true
	}
	return strings.HasSuffix(name, "_raw.txt")
}

func (u *Uploader) processFile(ctx context.Context, path string, kind Kind) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}
	hash := hashBytes(data)

	if u.state != nil {
		pushed, err := u.state.IsPushed(key, hash)
		if err != nil {
			return fmt.Errorf("checking state: %w", err)
		}
		if pushed {
			u.stats.FilesSkipped++
			u.log.Debug("unchanged, skipping", "file", path)
			return nil
		}
	}

	workouts, sets, err := u.push(ctx, data, kind)
	if err != nil {
		return err
	}
	u.stats.FilesPushed++
	u.stats.WorkoutsSent += workouts
	u.stats.SetsSent += sets
	u.log.Info("pushed", "file", path, "workouts", workouts, "sets", sets, "dry_run", u.dryRun)

	if u.state != nil && !u.dryRun {
		if err := u.state.MarkPushed(key, hash, workouts); err != nil {
			return fmt.Errorf("recording push: %w", err)
		}
	}
	return nil
}

// push sends one file and returns the workout and set counts. In dry-run mode
// the file is only parsed locally.
func (u *Uploader) push(ctx context.Context, data []byte, kind Kind) (int, int, error) {
	switch kind {
	case KindLog:
		if u.dryRun {
			workouts, err := manual.Parse(bytes.NewReader(data), nil)
			if err != nil {
				return 0, 0, err
			}
			return len(workouts), countSets(workouts), nil
		}
		res, err := u.client.SendLog(ctx, data)
		if err != nil {
			return 0, 0, err
		}
		return res.WorkoutsReceived, res.SetsReceived, nil

	case KindWorkouts:
		var workouts []models.Workout
		if err := json.Unmarshal(data, &workouts); err != nil {
			return 0, 0, fmt.Errorf("decoding workouts: %w", err)
		}
		if u.dryRun {
			return len(workouts), countSets(workouts), nil
		}
		res, err := u.client.SendWorkouts(ctx, workouts)
		if err != nil {
			return 0, 0, err
		}
		return res.WorkoutsReceived, res.SetsReceived, nil
	}
	return 0, 0, fmt.Errorf("unsupported file kind %d", kind)
}

func countSets(workouts []models.Workout) int {
	n := 0
	for _, w := range workouts {
		n += w.SetCount()
	}
	return n
}
