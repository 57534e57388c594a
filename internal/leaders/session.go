package leaders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/olgasafonova/country-leaders-scraper/internal/base"
	apierrors "github.com/olgasafonova/country-leaders-scraper/internal/errors"
	"github.com/olgasafonova/country-leaders-scraper/metrics"
)

// DefaultSessionTTL is assumed when the API's cookie carries no expiry.
const DefaultSessionTTL = 10 * time.Minute

// Session is the set of cookies issued by the API's cookie endpoint.
type Session struct {
	Cookies   []*http.Cookie
	IssuedAt  time.Time
	ExpiresAt time.Time // zero means no known expiry
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// CookieFetcher requests a fresh cookie from the API.
type CookieFetcher func(ctx context.Context) (*base.Response, error)

// SessionManager owns the API session. It acquires a cookie lazily, refreshes it
// proactively when it is known to be stale, and re-acquires it once per request
// when the API reports it expired.
type SessionManager struct {
	mu sync.Mutex

	cookieURL string
	fetch     CookieFetcher
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger

	current      *Session
	acquisitions int
}

// NewSessionManager creates a manager that obtains cookies through fetch.
// ttl bounds a session whose cookie has no expiry; 0 disables proactive expiry.
func NewSessionManager(cookieURL string, fetch CookieFetcher, ttl time.Duration, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		cookieURL: cookieURL,
		fetch:     fetch,
		ttl:       ttl,
		now:       time.Now,
		logger:    logger,
	}
}

// Acquire requests a new cookie and makes it the current session.
// Failures are returned as *errors.AuthError.
func (m *SessionManager) Acquire(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireLocked(ctx)
}

func (m *SessionManager) acquireLocked(ctx context.Context) (*Session, error) {
	m.acquisitions++

	resp, err := m.fetch(ctx)
	if err != nil {
		metrics.RecordSessionAcquire(false)
		return nil, &apierrors.AuthError{URL: m.cookieURL, Err: err}
	}
	if !resp.OK() {
		metrics.RecordSessionAcquire(false)
		return nil, &apierrors.AuthError{URL: m.cookieURL, StatusCode: resp.StatusCode}
	}

	now := m.now()
	s := &Session{IssuedAt: now}
	for _, ck := range resp.Cookies {
		if ck.MaxAge < 0 || ck.Value == "" {
			continue
		}
		s.Cookies = append(s.Cookies, ck)
		if exp := cookieExpiry(ck, now); !exp.IsZero() && (s.ExpiresAt.IsZero() || exp.Before(s.ExpiresAt)) {
			s.ExpiresAt = exp
		}
	}
	if len(s.Cookies) == 0 {
		metrics.RecordSessionAcquire(false)
		return nil, &apierrors.AuthError{URL: m.cookieURL}
	}
	if s.ExpiresAt.IsZero() && m.ttl > 0 {
		s.ExpiresAt = now.Add(m.ttl)
	}

	metrics.RecordSessionAcquire(true)
	m.logger.Debug("session acquired", "cookies", len(s.Cookies), "expires_at", s.ExpiresAt)
	m.current = s
	return s, nil
}

func cookieExpiry(ck *http.Cookie, now time.Time) time.Time {
	if ck.MaxAge > 0 {
		return now.Add(time.Duration(ck.MaxAge) * time.Second)
	}
	return ck.Expires
}

// IsValid reports whether s can still be used for requests.
func (m *SessionManager) IsValid(s *Session) bool {
	return s != nil && len(s.Cookies) > 0 && !s.Expired(m.now())
}

// Current returns the held session, acquiring a new one if it is missing or stale.
func (m *SessionManager) Current(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IsValid(m.current) {
		return m.current, nil
	}
	if m.current != nil {
		m.logger.Debug("session stale, refreshing", "expires_at", m.current.ExpiresAt)
	}
	return m.acquireLocked(ctx)
}

// Invalidate drops s if it is still the current session.
func (m *SessionManager) Invalidate(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == s {
		m.current = nil
	}
}

// Acquisitions returns how many cookie requests have been made.
func (m *SessionManager) Acquisitions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquisitions
}

// Do runs fn with the current session. If fn reports the session expired,
// the session is re-acquired and fn runs exactly once more; a second expiry
// is returned to the caller.
func (m *SessionManager) Do(ctx context.Context, fn func(*Session) error) error {
	s, err := m.Current(ctx)
	if err != nil {
		return err
	}

	err = fn(s)
	var expired *apierrors.SessionExpiredError
	if !errors.As(err, &expired) {
		return err
	}

	m.logger.Info("session expired, acquiring a new cookie",
		"endpoint", expired.Endpoint,
		"status", expired.StatusCode)
	metrics.SessionRetries.WithLabelValues(expired.Endpoint).Inc()

	m.Invalidate(s)
	s, err = m.Current(ctx)
	if err != nil {
		return err
	}
	return fn(s)
}
