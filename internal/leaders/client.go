// Package leaders is a client for the country-leaders REST API.
package leaders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/olgasafonova/country-leaders-scraper/internal/base"
	apierrors "github.com/olgasafonova/country-leaders-scraper/internal/errors"
)

const (
	// DefaultBaseURL is the public leaders API
	DefaultBaseURL = "https://country-leaders.onrender.com"

	// DefaultUserAgent is sent when Config.UserAgent is empty
	DefaultUserAgent = "country-leaders-scraper/1.0 (github.com/olgasafonova/country-leaders-scraper)"

	cookiePath    = "/cookie"
	countriesPath = "/countries"
	leadersPath   = "/leaders"
)

// Config configures the leaders API client.
type Config struct {
	BaseURL    string
	SessionTTL time.Duration
	UserAgent  string
}

// DefaultConfig returns the configuration for the public API.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		SessionTTL: DefaultSessionTTL,
		UserAgent:  DefaultUserAgent,
	}
}

// Client provides access to the leaders API
type Client struct {
	*base.Client
	cfg      Config
	sessions *SessionManager
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

// WithTimeout sets the per-call HTTP timeout
func WithTimeout(d time.Duration) ClientOption {
	return base.WithTimeout(d)
}

// NewClient creates a new leaders API client
func NewClient(cfg Config, opts ...ClientOption) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	c := &Client{
		Client: base.NewClient("leaders", opts...),
		cfg:    cfg,
	}
	c.sessions = NewSessionManager(cfg.BaseURL+cookiePath, c.fetchCookie, cfg.SessionTTL, c.Logger)
	return c
}

// Sessions exposes the session manager.
func (c *Client) Sessions() *SessionManager {
	return c.sessions
}

// Authenticate acquires the first session. An error here is fatal for a run.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.sessions.Acquire(ctx)
	return err
}

// ListCountries returns the country codes the API knows, in API order and
// spelling. Codes that differ only in case or surrounding space are listed once.
func (c *Client) ListCountries(ctx context.Context) ([]CountryCode, error) {
	var raw []string
	if err := c.getJSON(ctx, countriesPath, nil, &raw); err != nil {
		return nil, err
	}

	seen := make(map[CountryCode]bool, len(raw))
	countries := make([]CountryCode, 0, len(raw))
	for _, r := range raw {
		key := NormalizeCountry(r)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		countries = append(countries, CountryCode(strings.TrimSpace(r)))
	}
	return countries, nil
}

// ListLeaders returns the leaders of one country in API order. The country is
// sent as given, so codes from ListCountries keep the API's spelling.
// A country without leaders yields an empty, non-nil slice.
//
// Records that cannot be decoded are skipped and reported in an
// *errors.InvalidRecordsError returned together with the decoded leaders.
func (c *Client) ListLeaders(ctx context.Context, country CountryCode) ([]Leader, error) {
	country = CountryCode(strings.TrimSpace(string(country)))
	if err := ValidateCountry(NormalizeCountry(string(country))); err != nil {
		return nil, err
	}

	var records []json.RawMessage
	if err := c.getJSON(ctx, leadersPath, url.Values{"country": {string(country)}}, &records); err != nil {
		return nil, fmt.Errorf("leaders for %s: %w", country, err)
	}

	leaders := make([]Leader, 0, len(records))
	var invalid []apierrors.InvalidRecord
	for i, rec := range records {
		var l Leader
		if err := json.Unmarshal(rec, &l); err != nil {
			invalid = append(invalid, apierrors.InvalidRecord{Index: i, ID: recordID(rec), Err: err})
			continue
		}
		leaders = append(leaders, l)
	}
	if len(invalid) > 0 {
		c.Logger.Warn("skipping undecodable leader records", "country", country, "count", len(invalid))
		return leaders, &apierrors.InvalidRecordsError{Source: "leaders", Identifier: string(country), Records: invalid}
	}
	return leaders, nil
}

// recordID reads the id of a record that failed to decode as a Leader.
func recordID(rec json.RawMessage) string {
	var head struct {
		ID any `json:"id"`
	}
	if json.Unmarshal(rec, &head) != nil || head.ID == nil {
		return ""
	}
	if s, ok := head.ID.(string); ok {
		return s
	}
	return fmt.Sprint(head.ID)
}

func (c *Client) fetchCookie(ctx context.Context) (*base.Response, error) {
	return c.DoRequest(ctx, base.RequestConfig{
		URL:       c.cfg.BaseURL + cookiePath,
		Endpoint:  cookiePath,
		UserAgent: c.cfg.UserAgent,
	})
}

// getJSON performs an authenticated GET and decodes the JSON body into out.
// 401 and 403 are reported as session expiry so the session manager can retry.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.sessions.Do(ctx, func(s *Session) error {
		resp, err := c.DoRequest(ctx, base.RequestConfig{
			URL:       c.cfg.BaseURL + path,
			Endpoint:  path,
			Query:     query,
			UserAgent: c.cfg.UserAgent,
			Cookies:   s.Cookies,
		})
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return &apierrors.SessionExpiredError{Endpoint: path, StatusCode: resp.StatusCode}
		case resp.StatusCode == http.StatusNotFound && query.Get("country") != "":
			return &apierrors.NotFoundError{Source: "leaders", EntityType: "country", Identifier: query.Get("country")}
		case !resp.OK():
			return &apierrors.StatusError{
				URL:        c.cfg.BaseURL + path,
				StatusCode: resp.StatusCode,
				Body:       base.Truncate(string(resp.Body), 200),
			}
		}

		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("failed to parse %s response: %w", path, err)
		}
		return nil
	})
}
