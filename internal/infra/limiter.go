package infra

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter rate-limits requests per hostname (en.wikipedia.org, fr.wikipedia.org, ...).
type HostLimiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
	r  rate.Limit
	b  int
}

// NewHostLimiter allows reqPerSec sustained requests per host with the given burst.
// A non-positive reqPerSec disables limiting.
func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	r := rate.Limit(reqPerSec)
	if reqPerSec <= 0 {
		r = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostLimiter{
		m: make(map[string]*rate.Limiter),
		r: r,
		b: burst,
	}
}

func (hl *HostLimiter) limiterFor(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	if lim, ok := hl.m[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(hl.r, hl.b)
	hl.m[host] = lim
	return lim
}

// WaitURL blocks until a request to raw's host is allowed. It reports whether the
// caller had to wait, which callers feed into rate-limit metrics.
func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) (waited bool, err error) {
	lim := hl.limiterFor(hostOf(raw))
	if lim.Allow() {
		return false, nil
	}
	return true, lim.Wait(ctx)
}

// Hosts returns the number of hosts seen so far.
func (hl *HostLimiter) Hosts() int {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	return len(hl.m)
}

// hostOf returns the lowercased host of raw, or "_" when raw has none.
func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return strings.ToLower(u.Host)
	}
	return "_"
}
