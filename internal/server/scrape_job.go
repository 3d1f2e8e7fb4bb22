package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/ingest/gravitus"
	"github.com/claude/liftlog/internal/storage"
)

const scrapeSource = "gravitus_scrape"

var errScrapeCanceled = errors.New("scrape canceled by user")

// scrapeJob tracks a running server-side Gravitus scrape.
type scrapeJob struct {
	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	doneCh    chan struct{} // closed when goroutine exits
	user      string
	dryRun    bool
	done      bool
	step      int
	total     int
	url       string
	failed    int
	err       error
	logID     int64 // import_logs row id
	startedAt time.Time

	workoutsReceived int
	workoutsInserted int64
	setsReceived     int
	setsInserted     int64
	datesReplaced    int

	// SSE subscribers
	subs   map[chan sseEvent]struct{}
	subsMu sync.Mutex
}

// sseEvent is an SSE message to send to subscribers.
type sseEvent struct {
	Event string
	Data  string
}

func (job *scrapeJob) broadcast(event sseEvent) {
	job.subsMu.Lock()
	defer job.subsMu.Unlock()
	for ch := range job.subs {
		select {
		case ch <- event:
		default:
			// slow subscriber, skip
		}
	}
}

func (job *scrapeJob) subscribe() chan sseEvent {
	ch := make(chan sseEvent, 32)
	job.subsMu.Lock()
	job.subs[ch] = struct{}{}
	job.subsMu.Unlock()
	return ch
}

func (job *scrapeJob) unsubscribe(ch chan sseEvent) {
	job.subsMu.Lock()
	delete(job.subs, ch)
	job.subsMu.Unlock()
}

// scrapeRequest is the JSON body for starting a scrape. An empty body scrapes
// the configured user.
type scrapeRequest struct {
	User   string `json:"user"`
	DryRun bool   `json:"dry_run"`
}

func (s *Server) handleStartScrape(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	if s.scraper == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "scraper not configured"})
		return
	}

	var req scrapeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
	}
	if req.User == "" {
		req.User = s.scrapeUser
	}
	if req.User == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user is required"})
		return
	}

	s.scrapeMu.Lock()
	if s.activeScrape != nil && s.activeScrape.isRunning() {
		s.scrapeMu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a scrape is already running"})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &scrapeJob{
		running:   true,
		cancel:    cancel,
		doneCh:    make(chan struct{}),
		user:      req.User,
		dryRun:    req.DryRun,
		startedAt: time.Now(),
		subs:      make(map[chan sseEvent]struct{}),
	}

	metaJSON, _ := json.Marshal(map[string]any{
		"user":    req.User,
		"dry_run": req.DryRun,
	})
	rawMeta := json.RawMessage(metaJSON)
	logID, logErr := s.db.InsertImportLog(r.Context(), storage.ImportLog{
		UserID:   uid,
		Source:   scrapeSource,
		Status:   storage.StatusRunning,
		Metadata: &rawMeta,
	})
	if logErr != nil {
		s.log.Error("failed to create import log", "error", logErr)
	}
	job.logID = logID

	s.activeScrape = job
	s.scrapeMu.Unlock()

	go s.runScrape(ctx, job, uid)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "started",
		"user":   req.User,
		"log_id": logID,
	})
}

func (job *scrapeJob) isRunning() bool {
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.running
}

func (s *Server) runScrape(ctx context.Context, job *scrapeJob, userID int) {
	defer func() {
		job.mu.Lock()
		job.running = false
		job.done = true
		job.mu.Unlock()
		close(job.doneCh)
	}()

	report, err := s.scraper.RunWithProgress(ctx, job.user, func(p gravitus.Progress) {
		job.mu.Lock()
		job.step, job.total, job.url = p.Done, p.Total, p.URL
		if !p.OK {
			job.failed++
		}
		job.mu.Unlock()
		job.broadcast(sseEvent{Event: "progress", Data: mustJSON(p)})
	})
	if err == nil && !job.dryRun {
		result, storeErr := s.gravitus.Store(ctx, report.Workouts, userID)
		if storeErr != nil {
			err = storeErr
		} else {
			job.mu.Lock()
			job.workoutsReceived = result.WorkoutsReceived
			job.workoutsInserted = result.WorkoutsInserted
			job.setsReceived = result.SetsReceived
			job.setsInserted = result.SetsInserted
			job.datesReplaced = result.DatesReplaced
			job.mu.Unlock()
		}
	} else if err == nil {
		job.mu.Lock()
		job.workoutsReceived = len(report.Workouts)
		job.mu.Unlock()
	}

	if err != nil {
		if ctx.Err() != nil {
			err = errScrapeCanceled
		}
		job.mu.Lock()
		job.err = err
		job.mu.Unlock()
		s.log.Warn("gravitus scrape failed", "user", job.user, "error", err)
		job.broadcast(sseEvent{Event: "error", Data: mustJSON(map[string]string{"error": err.Error()})})
	} else {
		job.broadcast(sseEvent{Event: "complete", Data: mustJSON(job.snapshot())})
	}

	s.finalizeScrape(job)
}

// snapshot returns the job's progress and counters as a JSON-ready map.
func (job *scrapeJob) snapshot() map[string]any {
	job.mu.Lock()
	defer job.mu.Unlock()
	resp := map[string]any{
		"running":           job.running,
		"done":              job.done,
		"user":              job.user,
		"dry_run":           job.dryRun,
		"step":              job.step,
		"total":             job.total,
		"url":               job.url,
		"failed":            job.failed,
		"workouts_received": job.workoutsReceived,
		"workouts_inserted": job.workoutsInserted,
		"sets_received":     job.setsReceived,
		"sets_inserted":     job.setsInserted,
		"dates_replaced":    job.datesReplaced,
		"log_id":            job.logID,
	}
	if job.err != nil {
		resp["error"] = job.err.Error()
	}
	return resp
}

// finalizeScrape updates the import_logs row with final results.
func (s *Server) finalizeScrape(job *scrapeJob) {
	if job.logID == 0 {
		return
	}

	job.mu.Lock()
	durationMs := int(time.Since(job.startedAt).Milliseconds())
	status := storage.StatusSuccess
	var errMsg *string
	if job.err != nil {
		msg := job.err.Error()
		errMsg = &msg
		if errors.Is(job.err, errScrapeCanceled) {
			status = storage.StatusCancel
		} else {
			status = storage.StatusError
		}
	}
	metaJSON, _ := json.Marshal(map[string]any{
		"user":    job.user,
		"dry_run": job.dryRun,
		"pages":   job.total,
		"failed":  job.failed,
	})
	rawMeta := json.RawMessage(metaJSON)
	entry := storage.ImportLog{
		Status:           status,
		WorkoutsReceived: job.workoutsReceived,
		WorkoutsInserted: job.workoutsInserted,
		SetsReceived:     job.setsReceived,
		SetsInserted:     job.setsInserted,
		DatesReplaced:    job.datesReplaced,
		DurationMs:       &durationMs,
		ErrorMessage:     errMsg,
		Metadata:         &rawMeta,
	}
	job.mu.Unlock()

	ctx, cancel := logContext()
	defer cancel()

	if err := s.db.UpdateImportLog(ctx, job.logID, entry); err != nil {
		s.log.Error("failed to finalize import log", "log_id", job.logID, "error", err)
	}
}

func (s *Server) handleCancelScrape(w http.ResponseWriter, r *http.Request) {
	s.scrapeMu.Lock()
	job := s.activeScrape
	s.scrapeMu.Unlock()
	if job == nil || !job.isRunning() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no scrape running"})
		return
	}

	job.cancel()

	// Wait briefly for goroutine to finish
	select {
	case <-job.doneCh:
	case <-time.After(3 * time.Second):
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleScrapeStatus(w http.ResponseWriter, r *http.Request) {
	s.scrapeMu.Lock()
	job := s.activeScrape
	s.scrapeMu.Unlock()

	if job == nil {
		writeJSON(w, http.StatusOK, map[string]any{"running": false})
		return
	}
	writeJSON(w, http.StatusOK, job.snapshot())
}

func (s *Server) handleScrapeEvents(w http.ResponseWriter, r *http.Request) {
	s.scrapeMu.Lock()
	job := s.activeScrape
	s.scrapeMu.Unlock()

	if job == nil || !job.isRunning() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no scrape running"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := job.subscribe()
	defer job.unsubscribe(ch)

	// Send current status immediately
	fmt.Fprintf(w, "event: status\ndata: %s\n\n", mustJSON(job.snapshot()))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-job.doneCh:
			// Drain anything broadcast before exit.
			for {
				select {
				case evt := <-ch:
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data)
				default:
					flusher.Flush()
					return
				}
			}
		case evt := <-ch:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data)
			flusher.Flush()

			if evt.Event == "complete" || evt.Event == "error" {
				return
			}
		}
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{}`
	}
	return string(b)
}
