package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// HTTPClient implements DataSource by calling the LiftLog REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

// timeParams encodes non-zero bounds; zero bounds leave the range open.
func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	if !start.IsZero() {
		v.Set("start", start.Format(time.RFC3339))
	}
	if !end.IsZero() {
		v.Set("end", end.Format(time.RFC3339))
	}
	return v
}

func (c *HTTPClient) QueryWorkouts(ctx context.Context, start, end time.Time, _ int, exercise string) ([]models.Workout, error) {
	params := timeParams(start, end)
	if exercise != "" {
		params.Set("exercise", exercise)
	}

	body, err := c.get(ctx, "/api/v1/workouts", params)
	if err != nil {
		return nil, err
	}

	var workouts []models.Workout
	if err := json.Unmarshal(body, &workouts); err != nil {
		return nil, fmt.Errorf("httpclient: decode workouts: %w", err)
	}
	return workouts, nil
}

func (c *HTTPClient) ListExercises(ctx context.Context, _ int) ([]storage.ExerciseSummary, error) {
	body, err := c.get(ctx, "/api/v1/exercises", nil)
	if err != nil {
		return nil, err
	}

	var exercises []storage.ExerciseSummary
	if err := json.Unmarshal(body, &exercises); err != nil {
		return nil, fmt.Errorf("httpclient: decode exercises: %w", err)
	}
	return exercises, nil
}

func (c *HTTPClient) GetDataStats(ctx context.Context, _ int) (*storage.DataStats, error) {
	body, err := c.get(ctx, "/api/v1/stats", nil)
	if err != nil {
		return nil, err
	}

	var stats storage.DataStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("httpclient: decode stats: %w", err)
	}
	return &stats, nil
}

func (c *HTTPClient) GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, _ int) ([]storage.TrainingPeriod, error) {
	params := timeParams(start, end)
	params.Set("bucket", bucket)

	body, err := c.get(ctx, "/api/v1/training/summary", params)
	if err != nil {
		return nil, err
	}

	var rows []storage.TrainingPeriod
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("httpclient: decode training summary: %w", err)
	}
	return rows, nil
}
