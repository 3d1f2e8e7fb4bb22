package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/ingest/gravitus"
	"github.com/claude/liftlog/internal/ingest/manual"
	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/performance"
	"github.com/claude/liftlog/internal/rpe"
	"github.com/claude/liftlog/internal/storage"
	"github.com/go-chi/chi/v5"
)

// Store is the read side of the data layer plus import bookkeeping.
type Store interface {
	QueryWorkouts(ctx context.Context, start, end time.Time, userID int, exercise string) ([]models.Workout, error)
	ListExercises(ctx context.Context, userID int) ([]storage.ExerciseSummary, error)
	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
	GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingPeriod, error)
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	UpdateImportLog(ctx context.Context, id int64, log storage.ImportLog) error
	QueryImportLogs(ctx context.Context, userID, limit int) ([]storage.ImportLog, error)
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
}

var _ Store = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db       Store
	manual   *manual.Provider
	gravitus *gravitus.Provider
	table    *rpe.Table
	engine   *performance.Engine
	policy   performance.UnitPolicy
	metrics  *metrics.Manager
	log      *slog.Logger
	apiKey   string
	router   chi.Router

	ts WhoIser

	scraper      *gravitus.Scraper
	scrapeUser   string
	scrapeMu     sync.Mutex
	activeScrape *scrapeJob
}

// New creates a new Server with all routes configured. policy decides which
// stored workouts hold pound loads.
func New(db Store, manualProvider *manual.Provider, gravitusProvider *gravitus.Provider, table *rpe.Table, policy performance.UnitPolicy, m *metrics.Manager, apiKey string, log *slog.Logger) *Server {
	if policy == nil {
		policy = performance.Uniform(false)
	}
	s := &Server{
		db:       db,
		manual:   manualProvider,
		gravitus: gravitusProvider,
		table:    table,
		engine:   performance.NewEngine(table),
		policy:   policy,
		metrics:  m,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// SetTailscale enables per-user identity from the tailnet. Without it every
// request acts as the local dev user.
func (s *Server) SetTailscale(lc WhoIser) {
	s.ts = lc
}

// SetScraper enables server-side Gravitus scrapes. defaultUser is scraped
// when a request names no user.
func (s *Server) SetScraper(sc *gravitus.Scraper, defaultUser string) {
	s.scraper = sc
	s.scrapeUser = defaultUser
}

// MountMCP serves an MCP transport at /mcp behind the identity middleware,
// so handlers can read the caller with UserID.
func (s *Server) MountMCP(h http.Handler) {
	s.router.With(s.identify).Handle("/mcp", h)
}

// UserID returns the identified user of a request that passed through the
// identity middleware, or 1 (the local user) otherwise.
func UserID(r *http.Request) int {
	return userIDFromContext(r)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log, s.metrics))
	s.router.Use(CORS)

	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Group(func(r chi.Router) {
		r.Use(s.identify)

		// Ingest endpoints (API key required)
		r.Route("/api/v1/ingest", func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/log", s.handleManualIngest)
			r.Post("/gravitus", s.handleGravitusIngest)
		})

		r.Route("/api/v1/scrape/gravitus", func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/", s.handleStartScrape)
			r.Post("/cancel", s.handleCancelScrape)
			r.Get("/status", s.handleScrapeStatus)
			r.Get("/events", s.handleScrapeEvents)
		})

		// Read API. Access is gated by the identity middleware.
		r.Get("/api/v1/workouts", s.handleQueryWorkouts)
		r.Get("/api/v1/exercises", s.handleListExercises)
		r.Get("/api/v1/performance", s.handlePerformance)
		r.Get("/api/v1/e1rm", s.handleE1RM)
		r.Get("/api/v1/training/summary", s.handleTrainingSummary)
		r.Get("/api/v1/training/volume", s.handleTrainingVolume)
		r.Get("/api/v1/stats", s.handleStats)
		r.Get("/api/v1/imports", s.handleImportLogs)
		r.Get("/api/v1/me", s.handleMe)
	})
}
