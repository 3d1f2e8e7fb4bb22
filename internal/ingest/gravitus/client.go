package gravitus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/claude/liftlog/internal/metrics"
)

// DefaultBaseURL is the public Gravitus site.
const DefaultBaseURL = "https://gravitus.com"

// Client fetches Gravitus listing and workout pages.
type Client struct {
	base       string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
	pageDelay  time.Duration
	metrics    *metrics.Manager
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets the number of attempts per request and the base backoff,
// doubled after each failure.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.backoff = backoff
	}
}

// WithPageDelay sets the upper bound of the random pause taken before each
// listing page request. Zero disables it.
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) { c.pageDelay = d }
}

// WithMetrics records page fetch outcomes.
func WithMetrics(m *metrics.Manager) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for the site at baseURL.
func NewClient(baseURL string, log *slog.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		base:       strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		attempts:   3,
		backoff:    time.Second,
		pageDelay:  4 * time.Second,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserPageURL returns the URL of one page of a user's workout listing.
func (c *Client) UserPageURL(user string, page int) string {
	return fmt.Sprintf("%s/users/%s/?page=%d", c.base, user, page)
}

// WorkoutURL turns a listing href such as /workouts/123/ into an absolute URL.
func (c *Client) WorkoutURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return c.base + href
}

// Get fetches url, retrying failed requests and non-200 responses with
// exponential backoff.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		start := time.Now()
		b, err := c.get(ctx, url)
		c.metrics.PageFetched(err == nil, time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.log.Debug("fetch failed", "url", url, "attempt", attempt, "error", err)
			return err
		}
		body = b
		return nil
	}, retryPolicy(ctx, c.attempts, c.backoff))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("after %d attempts: %w", attempt, err)
	}
	return body, nil
}

// retryPolicy allows attempts tries in total, waiting initial, then twice
// that, and so on between them.
func retryPolicy(ctx context.Context, attempts int, initial time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(attempts-1, 0))), ctx)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return body, nil
}

// Listing walks a user's listing pages from page 1 until a page yields no
// workout links.
func (c *Client) Listing(ctx context.Context, user string) ([]Link, error) {
	var all []Link
	for page := 1; ; page++ {
		if c.pageDelay > 0 {
			if err := sleep(ctx, rand.N(c.pageDelay)); err != nil {
				return all, err
			}
		}
		body, err := c.Get(ctx, c.UserPageURL(user, page))
		if err != nil {
			return all, fmt.Errorf("listing page %d: %w", page, err)
		}
		links, err := ExtractLinks(bytes.NewReader(body))
		if err != nil {
			return all, fmt.Errorf("listing page %d: %w", page, err)
		}
		c.log.Info("listing page", "user", user, "page", page, "workouts", len(links))
		if len(links) == 0 {
			return all, nil
		}
		all = append(all, links...)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
