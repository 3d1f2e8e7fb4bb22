package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

const (
	defaultImportLogs = 50
	maxImportLogs     = 500
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	stats, err := s.db.GetDataStats(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleImportLogs lists recent imports, newest first. ?limit is clamped to
// [1, maxImportLogs]; ?source keeps only one source (manual, gravitus, scrape).
func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit := defaultImportLogs
	if l := q.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxImportLogs)
	}

	logs, err := s.db.QueryImportLogs(r.Context(), uid, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if source := q.Get("source"); source != "" {
		kept := logs[:0]
		for _, l := range logs {
			if l.Source == source {
				kept = append(kept, l)
			}
		}
		logs = kept
	}
	if logs == nil {
		logs = []storage.ImportLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

type meResponse struct {
	UserInfo
	UserID     int    `json:"user_id"`
	Scraper    bool   `json:"scraper"`
	ScrapeUser string `json:"scrape_user,omitempty"`
}

// handleMe reports who the caller is and whether server-side scrapes are
// available to them.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, meResponse{
		UserInfo:   userInfoFromContext(r),
		UserID:     UserID(r),
		Scraper:    s.scraper != nil,
		ScrapeUser: s.scrapeUser,
	})
}

// recordImport writes one import_logs row for a finished ingest request.
// It runs after the response body is decided, so it uses its own context.
func (s *Server) recordImport(uid int, source models.Source, result *ingest.Result, importErr error, started time.Time) {
	result = resultOrEmpty(result)
	durationMs := int(time.Since(started).Milliseconds())
	entry := storage.ImportLog{
		UserID:           uid,
		Source:           string(source),
		Status:           storage.StatusSuccess,
		WorkoutsReceived: result.WorkoutsReceived,
		WorkoutsInserted: result.WorkoutsInserted,
		SetsReceived:     result.SetsReceived,
		SetsInserted:     result.SetsInserted,
		DatesReplaced:    result.DatesReplaced,
		DurationMs:       &durationMs,
	}
	if importErr != nil {
		entry.Status = storage.StatusError
		msg := importErr.Error()
		entry.ErrorMessage = &msg
	}
	if result.Message != "" {
		meta, _ := json.Marshal(map[string]string{"message": result.Message})
		raw := json.RawMessage(meta)
		entry.Metadata = &raw
	}

	ctx, cancel := logContext()
	defer cancel()
	if _, err := s.db.InsertImportLog(ctx, entry); err != nil {
		s.log.Error("failed to log import", "source", source, "error", err)
	}
}

// logContext bounds import_logs writes that outlive their request.
func logContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd
}
