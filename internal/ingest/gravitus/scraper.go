package gravitus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of workout pages fetched concurrently.
const DefaultWorkers = 12

// ErrLocked is returned when another scrape holds the output directory.
var ErrLocked = errors.New("output directory is locked by another scrape")

// Report summarizes one scrape.
type Report struct {
	User     string           `json:"user"`
	Links    int              `json:"links"`
	Fetched  int              `json:"fetched"`
	Cached   int              `json:"cached"`
	Workouts []models.Workout `json:"workouts"`
	Failed   []string         `json:"failed"`
	Duration time.Duration    `json:"duration"`
}

// Progress is reported after each workout page is resolved.
type Progress struct {
	Done  int    `json:"done"`
	Total int    `json:"total"`
	URL   string `json:"url"`
	OK    bool   `json:"ok"`
}

// ProgressFunc receives scrape progress. Calls are serialized.
type ProgressFunc func(Progress)

// Scraper downloads every workout of a Gravitus user.
//
// With an output directory set, each run writes under <out>/<user>/:
// workout_url.json (the listing), workouts/<id>_raw.txt (page bodies),
// not_downloaded_url.json and parsed_data.json.
type Scraper struct {
	client  *Client
	state   *StateDB
	workers int
	outDir  string
	log     *slog.Logger
}

// NewScraper creates a scraper. state and outDir are optional.
func NewScraper(client *Client, state *StateDB, outDir string, workers int, log *slog.Logger) *Scraper {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Scraper{client: client, state: state, workers: workers, outDir: outDir, log: log}
}

// Run scrapes user. A page that cannot be fetched or parsed is recorded in
// Report.Failed and does not stop the run; only cancellation and local I/O
// errors are returned.
func (s *Scraper) Run(ctx context.Context, user string) (*Report, error) {
	return s.RunWithProgress(ctx, user, nil)
}

// RunWithProgress is Run with a progress callback, which may be nil.
func (s *Scraper) RunWithProgress(ctx context.Context, user string, progress ProgressFunc) (*Report, error) {
	start := time.Now()
	report := &Report{User: user}

	userDir := ""
	if s.outDir != "" {
		userDir = filepath.Join(s.outDir, user)
		if err := os.MkdirAll(filepath.Join(userDir, "workouts"), 0o755); err != nil {
			return nil, fmt.Errorf("creating output dir: %w", err)
		}
		lock := flock.New(filepath.Join(userDir, ".scrape.lock"))
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", userDir, ErrLocked)
		}
		defer lock.Unlock()
	}

	s.log.Info("collecting workouts", "user", user)
	links, err := s.client.Listing(ctx, user)
	if err != nil {
		return nil, err
	}
	report.Links = len(links)
	if userDir != "" {
		if err := writeJSON(filepath.Join(userDir, "workout_url.json"), links); err != nil {
			return nil, err
		}
	}

	workouts := make([]*models.Workout, len(links))
	var (
		mu     sync.Mutex
		failed []string
		done   int
	)
	step := func(href string, ok bool) {
		done++
		if progress != nil {
			progress(Progress{Done: done, Total: len(links), URL: href, OK: ok})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, link := range links {
		g.Go(func() error {
			w, cached, err := s.fetch(gctx, link, userDir)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Warn("workout not downloaded", "url", link.Href, "error", err)
				mu.Lock()
				failed = append(failed, link.Href)
				step(link.Href, false)
				mu.Unlock()
				return nil
			}
			workouts[i] = &w
			mu.Lock()
			if cached {
				report.Cached++
			} else {
				report.Fetched++
			}
			step(link.Href, true)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Workouts = make([]models.Workout, 0, len(links))
	for _, w := range workouts {
		if w != nil {
			report.Workouts = append(report.Workouts, *w)
		}
	}
	report.Failed = failed
	if report.Failed == nil {
		report.Failed = []string{}
	}
	report.Duration = time.Since(start)

	if userDir != "" {
		if err := writeJSON(filepath.Join(userDir, "not_downloaded_url.json"), report.Failed); err != nil {
			return nil, err
		}
		if err := writeJSON(filepath.Join(userDir, "parsed_data.json"), report.Workouts); err != nil {
			return nil, err
		}
	}

	s.log.Info("scrape complete",
		"user", user,
		"workouts", len(report.Workouts),
		"cached", report.Cached,
		"failed", len(report.Failed),
		"duration", report.Duration.String(),
	)
	return report, nil
}

func (s *Scraper) fetch(ctx context.Context, link Link, userDir string) (models.Workout, bool, error) {
	if s.state != nil {
		w, ok, err := s.state.Lookup(link.Href)
		if err != nil {
			s.log.Warn("state lookup failed", "url", link.Href, "error", err)
		} else if ok {
			return w, true, nil
		}
	}

	body, err := s.client.Get(ctx, s.client.WorkoutURL(link.Href))
	if err != nil {
		return models.Workout{}, false, err
	}
	if userDir != "" {
		if err := os.WriteFile(rawPath(userDir, link.Href), body, 0o644); err != nil {
			return models.Workout{}, false, fmt.Errorf("archiving page: %w", err)
		}
	}
	w, err := ExtractWorkout(bytes.NewReader(body), link.Href)
	if err != nil {
		return models.Workout{}, false, err
	}
	if s.state != nil {
		if err := s.state.MarkFetched(link.Href, w); err != nil {
			s.log.Warn("state update failed", "url", link.Href, "error", err)
		}
	}
	return w, false, nil
}

// rawPath maps /workouts/123/ to <userDir>/workouts/123_raw.txt.
func rawPath(userDir, href string) string {
	name := strings.Trim(href, "/")
	name = strings.TrimPrefix(name, "workouts/")
	name = strings.ReplaceAll(name, "/", "_")
	return filepath.Join(userDir, "workouts", name+"_raw.txt")
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
