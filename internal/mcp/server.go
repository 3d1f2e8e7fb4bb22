package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/claude/liftlog/internal/performance"
	"github.com/claude/liftlog/internal/rpe"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered. policy
// decides which workouts hold pound loads.
func New(ds DataSource, table *rpe.Table, policy performance.UnitPolicy, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("LiftLog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("LiftLog strength training server. Query workouts, list exercises, chart per-exercise progress (estimated 1RM, top set, tonnage, top single) and estimate one-rep maxes from RPE. All data is scoped to the authenticated user."),
	)

	if policy == nil {
		policy = performance.Uniform(false)
	}
	h := &handlers{ds: ds, table: table, engine: performance.NewEngine(table), policy: policy, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetPerformanceHistory, Handler: h.getPerformanceHistory},
		server.ServerTool{Tool: toolGetWorkouts, Handler: h.getWorkouts},
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
		server.ServerTool{Tool: toolGetTrainingVolume, Handler: h.getTrainingVolume},
		server.ServerTool{Tool: toolEstimateE1RM, Handler: h.estimateE1RM},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resRecentWorkouts, Handler: h.recentWorkouts},
		server.ServerResource{Resource: resExerciseCatalog, Handler: h.exerciseCatalog},
		server.ServerResource{Resource: resTrainingStats, Handler: h.trainingStats},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds     DataSource
	table  *rpe.Table
	engine *performance.Engine
	policy performance.UnitPolicy
	log    *slog.Logger
}

// --- Resource definitions ---

var resRecentWorkouts = mcp.NewResource(
	"liftlog://recent_workouts",
	"Recent Workouts",
	mcp.WithResourceDescription("Workouts logged in the last 14 days with every exercise and set"),
	mcp.WithMIMEType("application/json"),
)

var resExerciseCatalog = mcp.NewResource(
	"liftlog://exercise_catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("Every exercise name in the log with workout and set counts and first/last dates"),
	mcp.WithMIMEType("application/json"),
)

var resTrainingStats = mcp.NewResource(
	"liftlog://stats",
	"Training Stats",
	mcp.WithResourceDescription("Totals of stored workouts, sets and exercises, broken down by source"),
	mcp.WithMIMEType("application/json"),
)

func (h *handlers) recentWorkouts(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid := UserIDFromContext(ctx)
	end := time.Now()
	start := end.AddDate(0, 0, -14)

	workouts, err := h.ds.QueryWorkouts(ctx, start, end, uid, "")
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, workouts)
}

func (h *handlers) exerciseCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	exercises, err := h.ds.ListExercises(ctx, UserIDFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, exercises)
}

func (h *handlers) trainingStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := h.ds.GetDataStats(ctx, UserIDFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, stats)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
