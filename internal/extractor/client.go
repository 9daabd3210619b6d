package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/codetrack-engine/internal/config"
	"github.com/codetrack-engine/internal/domain"
)

// Client is the shared outbound HTTP client for all platform extractors.
// It applies browser-like headers, a per-call timeout, a per-platform rate
// limiter, and bounded retry with a fixed delay on rate-limit signals.
type Client struct {
	http          *http.Client
	userAgent     string
	retryAttempts int
	retryDelay    time.Duration
	requestDelay  time.Duration
	ratePerSec    float64
	logger        *slog.Logger

	mu       sync.Mutex
	limiters map[domain.Platform]*rate.Limiter
}

// NewClient creates a new outbound client from scraper configuration
func NewClient(cfg *config.ScraperConfig, logger *slog.Logger) *Client {
	return &Client{
		http:          &http.Client{Timeout: cfg.RequestTimeout},
		userAgent:     cfg.UserAgent,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		requestDelay:  cfg.RequestDelay,
		ratePerSec:    cfg.RatePerSecond,
		logger:        logger,
		limiters:      make(map[domain.Platform]*rate.Limiter),
	}
}

// limiter returns the rate limiter for a platform, creating it on first use
func (c *Client) limiter(platform domain.Platform) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[platform]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.ratePerSec), 1)
		c.limiters[platform] = l
	}
	return l
}

// Get performs a GET against url with browser headers
func (c *Client) Get(ctx context.Context, platform domain.Platform, url string) ([]byte, error) {
	return c.do(ctx, platform, http.MethodGet, url, "", nil)
}

// PostJSON performs a POST with a JSON-encoded body
func (c *Client) PostJSON(ctx context.Context, platform domain.Platform, url string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request body: %v", domain.ErrUnavailable, err)
	}
	return c.do(ctx, platform, http.MethodPost, url, "application/json", payload)
}

// Pause inserts the fixed inter-request delay between dependent calls to
// the same platform
func (c *Client) Pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.requestDelay):
	}
}

// do issues the request with bounded retry. Only rate-limit and forbidden
// responses are retried; everything else propagates immediately.
func (c *Client) do(ctx context.Context, platform domain.Platform, method, url, contentType string, body []byte) ([]byte, error) {
	if err := c.limiter(platform).Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	attempts := c.retryAttempts + 1
	var lastStatus int

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying after rate limit",
				"platform", platform,
				"url", url,
				"attempt", attempt+1,
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("%w: building request: %v", domain.ErrUnavailable, err)
		}
		c.setHeaders(req, contentType)

		resp, err := c.http.Do(req)
		if err != nil {
			// Transport failure or timeout; not a throttle signal
			return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if readErr != nil {
				return nil, fmt.Errorf("%w: reading response: %v", domain.ErrUnavailable, readErr)
			}
			return data, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, domain.ErrHandleNotFound
		case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
			lastStatus = resp.StatusCode
			continue
		default:
			return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrUnavailable, resp.StatusCode)
		}
	}

	// Retries exhausted on throttle signals; rate limiting escalates here
	return nil, fmt.Errorf("%w: %w (status %d after %d attempts)",
		domain.ErrUnavailable, domain.ErrRateLimited, lastStatus, attempts)
}

// setHeaders applies the browser-like header set the platforms expect
func (c *Client) setHeaders(req *http.Request, contentType string) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
	} else {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}
}
