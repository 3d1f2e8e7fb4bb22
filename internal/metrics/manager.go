// Package metrics exposes Prometheus instrumentation for ingest, scraping and
// the HTTP API. All Manager methods are no-ops on a nil receiver.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Manager struct {
	reg prometheus.Gatherer

	// counters
	CounterWorkouts    *prometheus.CounterVec
	CounterSets        *prometheus.CounterVec
	CounterIngestFails *prometheus.CounterVec
	CounterFetches     *prometheus.CounterVec
	CounterRequests    *prometheus.CounterVec

	// histograms
	HistFetchDuration   prometheus.Histogram
	HistRequestDuration *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("liftlog", "test", prometheus.NewRegistry())
}

// NewManager registers all collectors on reg. reg must also be a Gatherer for
// Handler to serve anything.
func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	m := &Manager{
		CounterWorkouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workouts_parsed_total",
			Help:      "Workouts decomposed from raw input",
		}, []string{"source"}),
		CounterSets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sets_parsed_total",
			Help:      "Set strings decomposed from raw input",
		}, []string{"source"}),
		CounterIngestFails: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ingest_failures_total",
			Help:      "Ingest operations that returned an error",
		}, []string{"source"}),
		CounterFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "page_fetches_total",
			Help:      "Workout site page fetches by outcome",
		}, []string{"outcome"}),
		CounterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "HTTP API requests",
		}, []string{"method", "status"}),
		HistFetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "page_fetch_seconds",
			Help:      "Duration of a single page fetch including retries",
			Buckets:   prometheus.DefBuckets,
		}),
		HistRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_seconds",
			Help:      "HTTP API request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.reg = g
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	if m == nil || m.reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Manager) WorkoutsParsed(source models.Source, workouts, sets int) {
	if m == nil {
		return
	}
	m.CounterWorkouts.WithLabelValues(string(source)).Add(float64(workouts))
	m.CounterSets.WithLabelValues(string(source)).Add(float64(sets))
}

func (m *Manager) IngestFailed(source models.Source) {
	if m == nil {
		return
	}
	m.CounterIngestFails.WithLabelValues(string(source)).Inc()
}

func (m *Manager) PageFetched(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.CounterFetches.WithLabelValues(outcome).Inc()
	m.HistFetchDuration.Observe(d.Seconds())
}

func (m *Manager) Request(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.CounterRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HistRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}
