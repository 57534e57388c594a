// Package base provides the shared HTTP client used by the leaders API and Wikipedia clients.
package base

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/olgasafonova/country-leaders-scraper/internal/infra"
	"github.com/olgasafonova/country-leaders-scraper/metrics"
)

const (
	// DefaultTimeout for a single HTTP call
	DefaultTimeout = 30 * time.Second

	// DefaultCacheTTL for cached responses
	DefaultCacheTTL = 24 * time.Hour

	// MaxConcurrentRequests is 1: the scraper issues one request at a time
	MaxConcurrentRequests = 1

	// DefaultMaxAttempts is the first try plus one retry
	DefaultMaxAttempts = 2

	// MaxBodySize caps how much of a response body is read
	MaxBodySize = 10 << 20

	// maxRetryAfter caps how long a Retry-After header can stall a run
	maxRetryAfter = 30 * time.Second

	defaultUserAgent = "country-leaders-scraper/1.0 (+https://github.com/olgasafonova/country-leaders-scraper)"
)

// Client provides common HTTP infrastructure: caching, request coalescing,
// a request slot and optional per-host circuit breaking and rate limiting.
type Client struct {
	Name         string // upstream name used in logs and metric labels
	HTTPClient   *http.Client
	Logger       *slog.Logger
	Cache        *infra.Cache[string]
	Dedup        *infra.RequestDeduplicator
	Breakers     *infra.HostBreakers // nil disables circuit breaking
	Limiter      *infra.HostLimiter
	Semaphore    chan struct{}
	RetryBackoff time.Duration
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.HTTPClient = c
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) ClientOption {
	return func(client *Client) {
		client.Logger = l
	}
}

// WithCache sets a custom cache
func WithCache(c *infra.Cache[string]) ClientOption {
	return func(client *Client) {
		client.Cache = c
	}
}

// WithTimeout sets the per-call HTTP timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		if d > 0 {
			client.HTTPClient.Timeout = d
		}
	}
}

// WithHostLimiter enables per-host rate limiting
func WithHostLimiter(l *infra.HostLimiter) ClientOption {
	return func(client *Client) {
		client.Limiter = l
	}
}

// WithHostBreakers enables per-host circuit breaking
func WithHostBreakers(b *infra.HostBreakers) ClientOption {
	return func(client *Client) {
		client.Breakers = b
	}
}

// WithRetryBackoff sets the pause before the retry attempt
func WithRetryBackoff(d time.Duration) ClientOption {
	return func(client *Client) {
		client.RetryBackoff = d
	}
}

// NewClient creates a base client for the named upstream with default settings
func NewClient(name string, opts ...ClientOption) *Client {
	c := &Client{
		Name:         name,
		HTTPClient:   newHTTPClient(DefaultTimeout),
		Logger:       slog.Default(),
		Cache:        infra.NewCache[string](infra.DefaultMaxCacheEntries),
		Dedup:        infra.NewRequestDeduplicator(),
		Semaphore:    make(chan struct{}, MaxConcurrentRequests),
		RetryBackoff: 200 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Cache.SetObserver(metrics.CacheObserver{})
	if c.Breakers != nil {
		c.Breakers.OnStateChange(func(name string, from, to infra.CircuitState) {
			metrics.CircuitState.WithLabelValues(name).Set(float64(to))
			c.Logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		})
	}

	return c
}

// Close releases idle connections held by the client
func (c *Client) Close() {
	if c.HTTPClient != nil {
		c.HTTPClient.CloseIdleConnections()
	}
}

// CircuitBreakerStats returns the state of the breaker guarding target's host.
// The zero value is returned when circuit breaking is disabled.
func (c *Client) CircuitBreakerStats(target string) infra.CircuitBreakerStats {
	if c.Breakers == nil {
		return infra.CircuitBreakerStats{}
	}
	return c.Breakers.For(target).Stats()
}

// DedupStats returns the number of in-flight deduplicated requests
func (c *Client) DedupStats() int {
	return c.Dedup.Stats()
}

// AcquireSlot blocks until a request slot is available or context is canceled
func (c *Client) AcquireSlot(ctx context.Context) error {
	select {
	case c.Semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context canceled while waiting for request slot: %w", ctx.Err())
	}
}

// ReleaseSlot releases a request slot
func (c *Client) ReleaseSlot() {
	<-c.Semaphore
}

// CheckCircuitBreaker returns nil if requests to target's host are allowed, or an error if its circuit is open
func (c *Client) CheckCircuitBreaker(target string) error {
	if c.Breakers == nil {
		return nil
	}
	cb := c.Breakers.For(target)
	if !cb.Allow() {
		stats := cb.Stats()
		return &infra.ErrCircuitOpen{
			Name:     stats.Name,
			RetryAt:  stats.RetryAt,
			Failures: stats.ConsecutiveFails,
		}
	}
	return nil
}

// RequestConfig configures a single GET request
type RequestConfig struct {
	URL         string
	Endpoint    string // metric label; defaults to the URL path
	Query       url.Values
	Accept      string // defaults to application/json
	UserAgent   string
	Cookies     []*http.Cookie
	MaxAttempts int // defaults to DefaultMaxAttempts
}

// Response is a fully read HTTP response
type Response struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Cookies    []*http.Cookie
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DoRequest performs a GET with circuit breaking, a request slot, per-host rate limiting
// and at most one retry for transport errors, 429 and 5xx. Other statuses, including
// 4xx, are returned to the caller without error.
func (c *Client) DoRequest(ctx context.Context, cfg RequestConfig) (*Response, error) {
	target, err := buildURL(cfg.URL, cfg.Query)
	if err != nil {
		return nil, err
	}
	if err := c.CheckCircuitBreaker(target.String()); err != nil {
		return nil, err
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = target.Path
	}

	if err := c.AcquireSlot(ctx); err != nil {
		return nil, err
	}
	defer c.ReleaseSlot()

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			metrics.APIRetries.WithLabelValues(c.Name).Inc()
			if err := sleepCtx(ctx, time.Duration(attempt*attempt)*c.RetryBackoff); err != nil {
				return nil, fmt.Errorf("context canceled during backoff: %w", err)
			}
		}

		if c.Limiter != nil {
			waited, err := c.Limiter.WaitURL(ctx, target.String())
			if err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
			if waited {
				metrics.RateLimitWaits.WithLabelValues(c.Name).Inc()
			}
		}

		resp, err := c.do(ctx, target.String(), cfg)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, lastErr
			}
			c.Logger.Warn("request failed",
				"upstream", c.Name,
				"attempt", attempt+1,
				"url", target.String(),
				"error", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429) by %s", target.Host)
			if wait := retryAfter(resp.Header.Get("Retry-After")); wait > 0 && attempt+1 < maxAttempts {
				if err := sleepCtx(ctx, wait); err != nil {
					return nil, err
				}
			}
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error %d from %s: %s", resp.StatusCode, endpoint, truncate(string(resp.Body), 200))
			c.Logger.Warn("server error",
				"upstream", c.Name,
				"attempt", attempt+1,
				"status", resp.StatusCode,
				"url", target.String())
			continue
		}

		c.recordOutcome(target.String(), true)
		return resp, nil
	}

	if ctx.Err() == nil {
		c.recordOutcome(target.String(), false)
	}
	return nil, lastErr
}

func (c *Client) recordOutcome(target string, ok bool) {
	if c.Breakers == nil {
		return
	}
	if ok {
		c.Breakers.For(target).RecordSuccess()
	} else {
		c.Breakers.For(target).RecordFailure()
	}
}

// do performs one HTTP round trip and reads the body.
func (c *Client) do(ctx context.Context, target string, cfg RequestConfig) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	accept := cfg.Accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	} else {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
	for _, ck := range cfg.Cookies {
		req.AddCookie(ck)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = req.URL.Path
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.RecordAPICall(c.Name, endpoint, time.Since(start).Seconds(), 0)
		return nil, fmt.Errorf("request failed: %w", err)
	}

	body, err := readAndClose(resp)
	metrics.RecordAPICall(c.Name, endpoint, time.Since(start).Seconds(), resp.StatusCode)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	metrics.ContentSize.WithLabelValues(c.Name).Observe(float64(len(body)))

	c.Logger.Debug("request completed",
		"upstream", c.Name,
		"url", target,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start))

	return &Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Cookies:    resp.Cookies(),
	}, nil
}

func buildURL(raw string, query url.Values) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// retryAfter parses a Retry-After value given in seconds, capped at maxRetryAfter.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return 0
	}
	d := time.Duration(seconds) * time.Second
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readAndClose reads at most MaxBodySize bytes and closes the body
func readAndClose(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	_ = resp.Body.Close()
	return body, err
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Truncate is exported for error bodies built by the API clients.
func Truncate(s string, maxLen int) string {
	return truncate(s, maxLen)
}

// newHTTPClient creates an HTTP client with tuned transport settings
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
