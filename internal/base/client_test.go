package base

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/olgasafonova/country-leaders-scraper/internal/infra"
)

func newTestClient(opts ...ClientOption) *Client {
	opts = append([]ClientOption{WithRetryBackoff(time.Millisecond)}, opts...)
	return NewClient("test", opts...)
}

func TestNewClient(t *testing.T) {
	client := NewClient("leaders")
	defer client.Close()

	if client.Name != "leaders" {
		t.Errorf("Name = %q, want leaders", client.Name)
	}
	if client.HTTPClient == nil {
		t.Error("HTTPClient is nil")
	}
	if client.Logger == nil {
		t.Error("Logger is nil")
	}
	if client.Cache == nil {
		t.Error("Cache is nil")
	}
	if client.Dedup == nil {
		t.Error("Dedup is nil")
	}
	if client.Breakers != nil {
		t.Error("circuit breaking should be off unless configured")
	}
	if client.Limiter != nil {
		t.Error("Limiter should be nil unless configured")
	}
}

func TestNewClientWithOptions(t *testing.T) {
	customHTTP := &http.Client{Timeout: 60 * time.Second}
	customLogger := slog.Default()
	customCache := infra.NewCache[string](10)
	limiter := infra.NewHostLimiter(5, 2)
	breakers := infra.NewHostBreakers("custom")

	client := NewClient("wikipedia",
		WithHTTPClient(customHTTP),
		WithLogger(customLogger),
		WithCache(customCache),
		WithHostLimiter(limiter),
		WithHostBreakers(breakers),
	)
	defer client.Close()

	if client.HTTPClient != customHTTP {
		t.Error("custom HTTP client was not set")
	}
	if client.Logger != customLogger {
		t.Error("custom logger was not set")
	}
	if client.Cache != customCache {
		t.Error("custom cache was not set")
	}
	if client.Limiter != limiter {
		t.Error("host limiter was not set")
	}
	if client.Breakers != breakers {
		t.Error("host breakers were not set")
	}
}

func TestClient_DefaultValues(t *testing.T) {
	client := NewClient("leaders")
	defer client.Close()

	if client.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", client.HTTPClient.Timeout, DefaultTimeout)
	}
	if cap(client.Semaphore) != 1 {
		t.Errorf("semaphore capacity = %d, want 1", cap(client.Semaphore))
	}
}

func TestWithTimeout(t *testing.T) {
	client := NewClient("leaders", WithTimeout(5*time.Second))
	if client.HTTPClient.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", client.HTTPClient.Timeout)
	}

	client = NewClient("leaders", WithTimeout(0))
	if client.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("zero timeout should keep default, got %v", client.HTTPClient.Timeout)
	}
}

func TestClient_AcquireSlot_ContextCanceled(t *testing.T) {
	client := &Client{Semaphore: make(chan struct{}, 1)}
	client.Semaphore <- struct{}{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.AcquireSlot(ctx); err == nil {
		t.Error("expected error when context is canceled")
	}
}

func TestClient_CheckCircuitBreaker_Open(t *testing.T) {
	client := NewClient("wikipedia", WithHostBreakers(infra.NewHostBreakers("wikipedia")))
	defer client.Close()

	const target = "https://fr.wikipedia.org/wiki/X"
	if err := client.CheckCircuitBreaker(target); err != nil {
		t.Fatalf("unexpected error from CheckCircuitBreaker: %v", err)
	}

	for range 10 {
		client.Breakers.For(target).RecordFailure()
	}

	err := client.CheckCircuitBreaker(target)
	if err == nil {
		t.Fatal("expected error when circuit is open")
	}
	if !strings.Contains(err.Error(), "wikipedia:fr.wikipedia.org") {
		t.Errorf("error should name the upstream host: %v", err)
	}
	if err := client.CheckCircuitBreaker("https://nl.wikipedia.org/wiki/X"); err != nil {
		t.Errorf("other hosts must not be affected: %v", err)
	}
}

func TestClient_NoBreakerByDefault(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 20 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newTestClient()
	for range 10 {
		_, _ = client.DoRequest(context.Background(), RequestConfig{URL: server.URL})
	}
	resp, err := client.DoRequest(context.Background(), RequestConfig{URL: server.URL})
	if err != nil {
		t.Fatalf("request after repeated failures must still be attempted: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestDoRequest_BreakerIsPerHost(t *testing.T) {
	var badHits, goodHits atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		badHits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goodHits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer good.Close()

	client := newTestClient(WithHostBreakers(infra.NewHostBreakers("wikipedia")))
	for range 6 {
		_, _ = client.DoRequest(context.Background(), RequestConfig{URL: bad.URL})
	}
	if got := client.CircuitBreakerStats(bad.URL).State; got != "open" {
		t.Fatalf("failing host breaker = %s, want open", got)
	}
	hitsBefore := badHits.Load()
	if _, err := client.DoRequest(context.Background(), RequestConfig{URL: bad.URL}); err == nil {
		t.Error("open breaker should reject the failing host")
	}
	if badHits.Load() != hitsBefore {
		t.Error("open breaker must not contact the failing host")
	}

	resp, err := client.DoRequest(context.Background(), RequestConfig{URL: good.URL})
	if err != nil {
		t.Fatalf("healthy host rejected: %v", err)
	}
	if string(resp.Body) != "ok" || goodHits.Load() != 1 {
		t.Errorf("body = %q, hits = %d", resp.Body, goodHits.Load())
	}
}

func TestDoRequest_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Error("Accept header not set")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`["be","fr"]`))
	}))
	defer server.Close()

	client := newTestClient()
	defer client.Close()

	resp, err := client.DoRequest(context.Background(), RequestConfig{URL: server.URL + "/countries"})
	if err != nil {
		t.Fatalf("DoRequest failed: %v", err)
	}
	if !resp.OK() {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != `["be","fr"]` {
		t.Errorf("body = %q", string(resp.Body))
	}
}

func TestDoRequest_SendsCookiesAndQuery(t *testing.T) {
	var gotCookie, gotCountry string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("user_cookie"); err == nil {
			gotCookie = c.Value
		}
		gotCountry = r.URL.Query().Get("country")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient()
	_, err := client.DoRequest(context.Background(), RequestConfig{
		URL:     server.URL + "/leaders",
		Query:   url.Values{"country": {"be"}},
		Cookies: []*http.Cookie{{Name: "user_cookie", Value: "abc123"}},
	})
	if err != nil {
		t.Fatalf("DoRequest failed: %v", err)
	}
	if gotCookie != "abc123" {
		t.Errorf("cookie = %q, want abc123", gotCookie)
	}
	if gotCountry != "be" {
		t.Errorf("country = %q, want be", gotCountry)
	}
}

func TestDoRequest_ReturnsResponseCookies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "user_cookie", Value: "fresh", MaxAge: 60})
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := newTestClient().DoRequest(context.Background(), RequestConfig{URL: server.URL + "/cookie"})
	if err != nil {
		t.Fatalf("DoRequest failed: %v", err)
	}
	if len(resp.Cookies) != 1 || resp.Cookies[0].Value != "fresh" {
		t.Errorf("cookies = %v", resp.Cookies)
	}
}

func TestDoRequest_UserAgent(t *testing.T) {
	var receivedUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient()

	_, _ = client.DoRequest(context.Background(), RequestConfig{URL: server.URL})
	if !strings.HasPrefix(receivedUA, "country-leaders-scraper/") {
		t.Errorf("default User-Agent = %q", receivedUA)
	}

	_, _ = client.DoRequest(context.Background(), RequestConfig{URL: server.URL, UserAgent: "custom-agent/1.0"})
	if receivedUA != "custom-agent/1.0" {
		t.Errorf("User-Agent = %q, want 'custom-agent/1.0'", receivedUA)
	}
}

func TestDoRequest_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	resp, err := newTestClient().DoRequest(context.Background(), RequestConfig{URL: server.URL})
	if err != nil {
		t.Fatalf("4xx should not be an error: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1", attempts.Load())
	}
}

func TestDoRequest_ServerErrorRetriedOnce(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer server.Close()

	resp, err := newTestClient().DoRequest(context.Background(), RequestConfig{URL: server.URL})
	if err != nil {
		t.Fatalf("DoRequest failed: %v", err)
	}
	if string(resp.Body) != "success" {
		t.Errorf("body = %q, want success", string(resp.Body))
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
}

func TestDoRequest_ServerErrorGivesUpAfterRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := newTestClient(WithHostBreakers(infra.NewHostBreakers("test")))
	_, err := client.DoRequest(context.Background(), RequestConfig{URL: server.URL})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if attempts.Load() != DefaultMaxAttempts {
		t.Errorf("attempts = %d, want %d", attempts.Load(), DefaultMaxAttempts)
	}
	if got := client.CircuitBreakerStats(server.URL).ConsecutiveFails; got != 1 {
		t.Errorf("circuit breaker should record one failure, got %d", got)
	}
}

func TestDoRequest_RateLimited(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := newTestClient().DoRequest(ctx, RequestConfig{URL: server.URL})
	if err != nil {
		t.Fatalf("DoRequest failed: %v", err)
	}
	if string(resp.Body) != "success" {
		t.Errorf("body = %q, want success", string(resp.Body))
	}
}

func TestDoRequest_CircuitOpen(t *testing.T) {
	client := newTestClient(WithHostBreakers(infra.NewHostBreakers("test")))
	for range 10 {
		client.Breakers.For("http://example.invalid").RecordFailure()
	}

	_, err := client.DoRequest(context.Background(), RequestConfig{URL: "http://example.invalid"})
	if err == nil {
		t.Error("expected error when circuit is open")
	}
}

func TestDoRequest_InvalidURL(t *testing.T) {
	_, err := newTestClient().DoRequest(context.Background(), RequestConfig{URL: "http://[::1"})
	if err == nil {
		t.Error("expected error for unparseable URL")
	}
}

func TestDoRequest_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient().DoRequest(ctx, RequestConfig{URL: server.URL})
	if err == nil {
		t.Error("expected error when context expires")
	}
}

func TestDoRequest_HostLimiter(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
	}))
	defer server.Close()

	client := newTestClient(WithHostLimiter(infra.NewHostLimiter(100, 1)))
	for range 3 {
		if _, err := client.DoRequest(context.Background(), RequestConfig{URL: server.URL}); err != nil {
			t.Fatalf("DoRequest failed: %v", err)
		}
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
	if client.Limiter.Hosts() != 1 {
		t.Errorf("Hosts() = %d, want 1", client.Limiter.Hosts())
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"abc", 0},
		{"-1", 0},
		{"2", 2 * time.Second},
		{"3600", maxRetryAfter},
	}
	for _, tt := range tests {
		if got := retryAfter(tt.in); got != tt.want {
			t.Errorf("retryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"longer than max length", 10, "longer tha..."},
		{"", 5, ""},
		{"abcd", 3, "abc..."},
	}

	for _, tt := range tests {
		if result := Truncate(tt.input, tt.maxLen); result != tt.expected {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestReadAndClose_Limit(t *testing.T) {
	big := strings.Repeat("x", MaxBodySize+100)
	resp := &http.Response{Body: io.NopCloser(strings.NewReader(big))}

	data, err := readAndClose(resp)
	if err != nil {
		t.Fatalf("readAndClose failed: %v", err)
	}
	if len(data) != MaxBodySize {
		t.Errorf("read %d bytes, want %d", len(data), MaxBodySize)
	}
}
