package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/performance"
	"github.com/claude/liftlog/internal/rpe"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/units"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end defaulting to the last days days.
func defaultTimeRange(startStr, endStr string, days int) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -days)
	}

	return start, end, nil
}

// openTimeRange parses optional bounds; missing ones stay zero.
func openTimeRange(startStr, endStr string) (start, end time.Time, err error) {
	if startStr != "" {
		if start, err = parseFlexTime(startStr); err != nil {
			return
		}
	}
	if endStr != "" {
		end, err = parseFlexTime(endStr)
	}
	return
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetPerformanceHistory = mcp.NewTool("get_performance_history",
	mcp.WithDescription("Per-workout progress series for one exercise. e1RM is the best estimated one-rep max from the RPE table, top-set the heaviest load, tonnage the sum of load x reps, top-single the heaviest single. One point per training date, oldest first."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exact exercise name as listed by list_exercises (e.g. 'Squat', 'Bench Press')")),
	mcp.WithString("mode", mcp.Description("Metric. Defaults to e1RM."), mcp.Enum("e1RM", "top-set", "tonnage", "top-single")),
	mcp.WithString("unit", mcp.Description("Output unit. Defaults to kg."), mcp.Enum("kg", "lb")),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to the first logged workout.")),
	mcp.WithString("end", mcp.Description("End date, exclusive. Defaults to now.")),
)

var toolGetWorkouts = mcp.NewTool("get_workouts",
	mcp.WithDescription("Query logged workouts with their exercises and set strings (e.g. '140x5 @8')."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Only workouts containing this exact exercise name")),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List every exercise in the log with workout and set counts and first/last training dates, most trained first."),
)

var toolGetTrainingVolume = mcp.NewTool("get_training_volume",
	mcp.WithDescription("Training volume per week or month: sessions, sets, reps and tonnage (sum of load x reps). Loads from pound-based sources are converted before summing. Newest period first."),
	mcp.WithString("bucket", mcp.Description("Period size. Defaults to week."), mcp.Enum("week", "month")),
	mcp.WithString("unit", mcp.Description("Tonnage unit. Defaults to kg."), mcp.Enum("kg", "lb")),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 12 weeks ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

var toolEstimateE1RM = mcp.NewTool("estimate_e1rm",
	mcp.WithDescription("Estimate a one-rep max from a set using the RPE table. Reps outside 1-10 are treated as 10 and a missing or sub-6.5 RPE as 6.5."),
	mcp.WithNumber("load", mcp.Required(), mcp.Description("Load lifted")),
	mcp.WithNumber("reps", mcp.Required(), mcp.Description("Repetitions performed")),
	mcp.WithNumber("rpe", mcp.Description("Rate of perceived exertion, 6.5 to 10 in half steps")),
)

// --- Tool handlers ---

func (h *handlers) getPerformanceHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	mode, err := performance.ParseMode(req.GetString("mode", string(performance.ModeE1RM)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	unit := req.GetString("unit", "kg")
	if unit != "kg" && unit != "lb" {
		return mcp.NewToolResultError("unit must be kg or lb"), nil
	}
	start, end, err := openTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	uid := UserIDFromContext(ctx)
	workouts, err := h.ds.QueryWorkouts(ctx, time.Time{}, time.Time{}, uid, exercise)
	if err != nil {
		h.log.Error("mcp get_performance_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	series, err := h.engine.HistoryWith(exercise, workouts, mode, h.policy)
	if err != nil {
		return mcp.NewToolResultError("computing history: " + err.Error()), nil
	}
	series = series.Between(start, end)
	if unit == "lb" {
		series = series.ToImperial()
	}

	out := map[string]any{
		"exercise": exercise,
		"mode":     mode,
		"unit":     unit,
		"points":   series,
	}
	if p, ok := series.Max(); ok {
		out["best"] = p
	}
	if p, ok := series.Last(); ok {
		out["latest"] = p
	}

	result, err := mcp.NewToolResultJSON(out)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 30)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	exercise := req.GetString("exercise", "")
	uid := UserIDFromContext(ctx)

	workouts, err := h.ds.QueryWorkouts(ctx, start, end, uid, exercise)
	if err != nil {
		h.log.Error("mcp get_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(workouts)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listExercises(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercises, err := h.ds.ListExercises(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(exercises)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTrainingVolume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bucket := req.GetString("bucket", "week")
	if bucket != "week" && bucket != "month" {
		return mcp.NewToolResultError("bucket must be week or month"), nil
	}
	unit := req.GetString("unit", "kg")
	if unit != "kg" && unit != "lb" {
		return mcp.NewToolResultError("unit must be kg or lb"), nil
	}
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 84)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	rows, err := h.ds.GetTrainingSummary(ctx, start, end, bucket, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_training_volume", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	inPounds := func(src models.Source) bool { return h.policy(models.Workout{Source: src}) }
	result, err := mcp.NewToolResultJSON(map[string]any{
		"bucket":  bucket,
		"unit":    unit,
		"periods": storage.MergeVolume(rows, inPounds, unit == "lb"),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) estimateE1RM(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	load, err := req.RequireFloat("load")
	if err != nil {
		return mcp.NewToolResultError("load parameter is required"), nil
	}
	repsF, err := req.RequireFloat("reps")
	if err != nil {
		return mcp.NewToolResultError("reps parameter is required"), nil
	}
	reps := int(repsF)

	var rpeVal *float64
	if v := req.GetFloat("rpe", 0); v != 0 {
		rpeVal = &v
	}

	e, err := h.table.Estimate1RM(load, reps, rpeVal)
	if errors.Is(err, rpe.ErrNotInTable) {
		return mcp.NewToolResultError("rpe must be between 6.5 and 10 in half steps"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cr, cp := rpe.Clamp(reps, rpeVal)
	pct, _ := h.table.Percent(cr, cp)

	result, err := mcp.NewToolResultJSON(map[string]any{
		"load":    load,
		"reps":    cr,
		"rpe":     cp,
		"percent": pct,
		"e1rm":    units.Round(e, units.DefaultPrecision),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
