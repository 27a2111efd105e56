// Package apiclient is the HTTP client shared by the forecast provider
// connectors. It applies the request timeout and rate limit, records request
// latency, and classifies failures into domain.ProviderError kinds.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/couchcryptid/marine-ops/internal/observability"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of a failed response body ends up in errors.
const maxErrorBody = 512

// Options configure a Client.
type Options struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 = unlimited
}

// Client performs JSON GET requests on behalf of one provider.
type Client struct {
	provider   string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// New creates a client for the named provider.
func New(provider string, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Client{
		provider: provider,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		metrics: metrics,
		logger:  logger.With("provider", provider),
	}
}

// Provider returns the provider name errors are attributed to.
func (c *Client) Provider() string { return c.provider }

// GetJSON issues a GET to base with params and headers and decodes a 2xx
// JSON body into out.
func (c *Client) GetJSON(ctx context.Context, base string, params url.Values, headers map[string]string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.classify(ctx, err)
	}

	fullURL := base
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ProviderDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())
	if err != nil {
		return c.classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		kind := domain.KindStatus
		if resp.StatusCode == http.StatusTooManyRequests {
			kind = domain.KindRateLimit
		}
		c.logger.Debug("provider returned error status", "status", resp.StatusCode)
		return &domain.ProviderError{
			Provider:   c.provider,
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewPayloadError(c.provider, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// classify maps a transport-level failure onto a ProviderError. A
// cancelled caller context is returned as is so it never triggers fallback.
func (c *Client) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	kind := domain.KindTransport
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = domain.KindTimeout
	}
	return &domain.ProviderError{Provider: c.provider, Kind: kind, Err: err}
}

// PayloadError is a convenience for connectors rejecting a decoded body.
func (c *Client) PayloadError(err error) error {
	return domain.NewPayloadError(c.provider, err)
}
