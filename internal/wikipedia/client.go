// Package wikipedia fetches Wikipedia articles and extracts their introductory paragraph.
package wikipedia

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/olgasafonova/country-leaders-scraper/internal/base"
	apierrors "github.com/olgasafonova/country-leaders-scraper/internal/errors"
	"github.com/olgasafonova/country-leaders-scraper/internal/infra"
)

const (
	// DefaultUserAgent identifies the scraper to Wikimedia as their robot policy asks
	DefaultUserAgent = "country-leaders-scraper/1.0 (https://github.com/olgasafonova/country-leaders-scraper) Go-http-client"

	// DefaultRequestsPerSecond per language edition host
	DefaultRequestsPerSecond = 5

	// DefaultBurst per host
	DefaultBurst = 2
)

// Config configures the Wikipedia client.
type Config struct {
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	CacheTTL          time.Duration
	Extractor         *Extractor // nil uses NewExtractor()
}

// DefaultConfig returns polite defaults for Wikimedia servers.
func DefaultConfig() Config {
	return Config{
		UserAgent:         DefaultUserAgent,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Burst:             DefaultBurst,
		CacheTTL:          base.DefaultCacheTTL,
	}
}

// Client fetches Wikipedia pages
type Client struct {
	*base.Client
	cfg       Config
	extractor *Extractor
}

// ClientOption configures the Client (re-export base.ClientOption for compatibility)
type ClientOption = base.ClientOption

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return base.WithHTTPClient(c)
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) ClientOption {
	return base.WithLogger(l)
}

// WithCache sets a custom intro cache
func WithCache(c *infra.Cache[string]) ClientOption {
	return base.WithCache(c)
}

// NewClient creates a Wikipedia client with per-host rate limiting and circuit breaking.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = base.DefaultCacheTTL
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = NewExtractor()
	}

	opts = append([]ClientOption{
		base.WithHostLimiter(infra.NewHostLimiter(cfg.RequestsPerSecond, cfg.Burst)),
		base.WithHostBreakers(infra.NewHostBreakers("wikipedia")),
	}, opts...)

	return &Client{
		Client:    base.NewClient("wikipedia", opts...),
		cfg:       cfg,
		extractor: extractor,
	}
}

// Intro returns the cleaned introductory paragraph of the article at pageURL.
// A missing page yields *errors.NotFoundError and a page without a qualifying
// paragraph yields ErrNoIntro.
func (c *Client) Intro(ctx context.Context, pageURL string) (string, error) {
	u, err := ValidatePageURL(pageURL)
	if err != nil {
		return "", err
	}

	cacheKey := "intro:" + u.String()
	if cached, ok := c.Cache.Get(cacheKey); ok {
		return cached, nil
	}

	result, shared, err := c.Dedup.Do(ctx, cacheKey, func() (any, error) {
		return c.fetchIntro(ctx, u)
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.Logger.Debug("intro request coalesced", "url", u.String())
	}

	intro := result.(string)
	c.Cache.Set(cacheKey, intro, c.cfg.CacheTTL)
	return intro, nil
}

func (c *Client) fetchIntro(ctx context.Context, u *url.URL) (string, error) {
	resp, err := c.DoRequest(ctx, base.RequestConfig{
		URL:       u.String(),
		Endpoint:  u.Host,
		Accept:    "text/html,application/xhtml+xml",
		UserAgent: c.cfg.UserAgent,
	})
	if err != nil {
		return "", err
	}

	if resp.StatusCode == http.StatusNotFound {
		return "", apierrors.NewNotFoundError("wikipedia", u.String())
	}
	if !resp.OK() {
		return "", &apierrors.StatusError{
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			Body:       base.Truncate(string(resp.Body), 200),
		}
	}

	return c.extractor.Extract(bytes.NewReader(resp.Body), u)
}
