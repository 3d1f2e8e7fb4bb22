package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/models"
)

// errRejected marks a 4xx response; the same body would be rejected again.
var errRejected = errors.New("rejected by server")

// Client sends training data to the LiftLog server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the LiftLog server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		attempts: 3,
		backoff:  time.Second,
	}
}

// SendLog POSTs a plain-text training log to the manual ingest endpoint.
func (c *Client) SendLog(ctx context.Context, text []byte) (*ingest.Result, error) {
	return c.post(ctx, "/api/v1/ingest/log", "text/plain; charset=utf-8", text)
}

// SendWorkouts POSTs decomposed Gravitus workouts to the gravitus ingest endpoint.
func (c *Client) SendWorkouts(ctx context.Context, workouts []models.Workout) (*ingest.Result, error) {
	data, err := json.Marshal(workouts)
	if err != nil {
		return nil, fmt.Errorf("marshaling workouts: %w", err)
	}
	return c.post(ctx, "/api/v1/ingest/gravitus", "application/json", data)
}

// post retries with exponential backoff on transport errors and 5xx responses.
func (c *Client) post(ctx context.Context, path, contentType string, data []byte) (*ingest.Result, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.attempts-1, 0))), ctx)

	var result *ingest.Result
	err := backoff.Retry(func() error {
		r, err := c.do(ctx, path, contentType, data)
		if err != nil {
			if errors.Is(err, errRejected) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		result = r
		return nil
	}, policy)
	if err != nil {
		if errors.Is(err, errRejected) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("after %d attempts: %w", c.attempts, err)
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, path, contentType string, data []byte) (*ingest.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%s (status %d): %s: %w", path, resp.StatusCode, bytes.TrimSpace(body), errRejected)
	default:
		return nil, fmt.Errorf("%s failed (status %d): %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}

	var result ingest.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return &result, nil
}
