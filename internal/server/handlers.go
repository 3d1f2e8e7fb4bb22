package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/ingest/manual"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/performance"
	"github.com/claude/liftlog/internal/rpe"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/units"
)

func (s *Server) handleManualIngest(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	start := time.Now()
	result, err := s.manual.Ingest(r.Context(), r.Body, uid)
	s.recordImport(uid, models.SourceManual, result, err, start)
	if err != nil {
		s.log.Error("manual ingest error", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, manual.ErrHeadline) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGravitusIngest(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var workouts []models.Workout
	if err := json.NewDecoder(r.Body).Decode(&workouts); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	start := time.Now()
	result, err := s.gravitus.Store(r.Context(), workouts, uid)
	s.recordImport(uid, models.SourceGravitus, result, err, start)
	if err != nil {
		s.log.Error("gravitus ingest error", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, performance.ErrBadDate) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleQueryWorkouts(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	workouts, err := s.db.QueryWorkouts(r.Context(), start, end, uid, r.URL.Query().Get("exercise"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if workouts == nil {
		workouts = []models.Workout{}
	}
	writeJSON(w, http.StatusOK, workouts)
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	exercises, err := s.db.ListExercises(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, exercises)
}

// performanceResponse is the body of GET /api/v1/performance.
type performanceResponse struct {
	Exercise string             `json:"exercise"`
	Mode     performance.Mode   `json:"mode"`
	Unit     string             `json:"unit"`
	Points   performance.Series `json:"points"`
	Best     *performance.Point `json:"best"`
	Latest   *performance.Point `json:"latest"`
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	exercise := q.Get("exercise")
	if exercise == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise parameter required"})
		return
	}
	mode := performance.ModeE1RM
	if m := q.Get("mode"); m != "" {
		var err error
		if mode, err = performance.ParseMode(m); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}
	unit := q.Get("unit")
	if unit == "" {
		unit = "kg"
	}
	if unit != "kg" && unit != "lb" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unit must be kg or lb"})
		return
	}
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// Same-date replacement spans the whole history, so filter after reducing.
	workouts, err := s.db.QueryWorkouts(r.Context(), time.Time{}, time.Time{}, uid, exercise)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	series, err := s.engine.HistoryWith(exercise, workouts, mode, s.policy)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, performance.ErrIncompleteSet) || errors.Is(err, performance.ErrBadDate) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	series = series.Between(start, end)
	if unit == "lb" {
		series = series.ToImperial()
	}

	resp := performanceResponse{Exercise: exercise, Mode: mode, Unit: unit, Points: series}
	if p, ok := series.Max(); ok {
		resp.Best = &p
	}
	if p, ok := series.Last(); ok {
		resp.Latest = &p
	}
	writeJSON(w, http.StatusOK, resp)
}

// e1rmResponse is the body of GET /api/v1/e1rm. Reps and RPE are the values
// looked up after clamping.
type e1rmResponse struct {
	Load    float64 `json:"load"`
	Reps    int     `json:"reps"`
	RPE     float64 `json:"rpe"`
	Percent int     `json:"percent"`
	E1RM    float64 `json:"e1rm"`
}

func (s *Server) handleE1RM(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	load, err := strconv.ParseFloat(q.Get("load"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "load parameter must be a number"})
		return
	}
	reps, err := rpe.ParseReps(q.Get("reps"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var rpeVal *float64
	if v := q.Get("rpe"); v != "" {
		f, err := rpe.ParseRPE(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		rpeVal = &f
	}

	e, err := s.table.Estimate1RM(load, reps, rpeVal)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	cr, cp := rpe.Clamp(reps, rpeVal)
	pct, _ := s.table.Percent(cr, cp)
	writeJSON(w, http.StatusOK, e1rmResponse{
		Load:    load,
		Reps:    cr,
		RPE:     cp,
		Percent: pct,
		E1RM:    units.Round(e, units.DefaultPrecision),
	})
}

// handleTrainingSummary returns per-source volume rows in recorded units.
func (s *Server) handleTrainingSummary(w http.ResponseWriter, r *http.Request) {
	rows, _, ok := s.trainingRows(w, r)
	if !ok {
		return
	}
	if rows == nil {
		rows = []storage.TrainingPeriod{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleTrainingVolume returns one row per period with tonnage in kg or lb.
func (s *Server) handleTrainingVolume(w http.ResponseWriter, r *http.Request) {
	unit := r.URL.Query().Get("unit")
	if unit == "" {
		unit = "kg"
	}
	if unit != "kg" && unit != "lb" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unit must be kg or lb"})
		return
	}
	rows, bucket, ok := s.trainingRows(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bucket":  bucket,
		"unit":    unit,
		"periods": storage.MergeVolume(rows, s.sourceInPounds, unit == "lb"),
	})
}

func (s *Server) trainingRows(w http.ResponseWriter, r *http.Request) ([]storage.TrainingPeriod, string, bool) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return nil, "", false
	}
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		bucket = "week"
	}
	if bucket != "week" && bucket != "month" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bucket must be week or month"})
		return nil, "", false
	}
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, "", false
	}
	rows, err := s.db.GetTrainingSummary(r.Context(), start, end, bucket, uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil, "", false
	}
	return rows, bucket, true
}

// sourceInPounds applies the unit policy to a whole source.
func (s *Server) sourceInPounds(src models.Source) bool {
	return s.policy(models.Workout{Source: src})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseDateRange reads optional start and end query parameters. Date-only
// ends are inclusive. Missing bounds are returned as zero times.
func parseDateRange(r *http.Request) (start, end time.Time, err error) {
	if v := r.URL.Query().Get("start"); v != "" {
		if start, err = parseTime(v); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if end, err = parseTime(v); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
		}
		if len(v) == len("2006-01-02") {
			// End of day for date-only
			end = end.AddDate(0, 0, 1)
		}
	}
	return start, end, nil
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

// resultOrEmpty keeps import logging safe when an ingest failed early.
func resultOrEmpty(r *ingest.Result) *ingest.Result {
	if r == nil {
		return &ingest.Result{}
	}
	return r
}
