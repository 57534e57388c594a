package infra

import (
	"context"
	"testing"
	"time"
)

func TestHostLimiter_SeparateHosts(t *testing.T) {
	hl := NewHostLimiter(1, 1)
	ctx := context.Background()

	for _, u := range []string{
		"https://en.wikipedia.org/wiki/A",
		"https://fr.wikipedia.org/wiki/B",
		"https://nl.wikipedia.org/wiki/C",
	} {
		waited, err := hl.WaitURL(ctx, u)
		if err != nil {
			t.Fatalf("WaitURL(%s) error = %v", u, err)
		}
		if waited {
			t.Errorf("first request to %s should not wait", u)
		}
	}
	if hl.Hosts() != 3 {
		t.Errorf("Hosts() = %d, want 3", hl.Hosts())
	}
}

func TestHostLimiter_SameHostWaits(t *testing.T) {
	hl := NewHostLimiter(50, 1)
	ctx := context.Background()

	if _, err := hl.WaitURL(ctx, "https://en.wikipedia.org/wiki/A"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	waited, err := hl.WaitURL(ctx, "https://EN.wikipedia.org/wiki/B")
	if err != nil {
		t.Fatal(err)
	}
	if !waited {
		t.Error("second request within the burst window should wait")
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("expected a measurable delay")
	}
	if hl.Hosts() != 1 {
		t.Errorf("host matching should be case-insensitive, Hosts() = %d", hl.Hosts())
	}
}

func TestHostLimiter_ContextCanceled(t *testing.T) {
	hl := NewHostLimiter(0.01, 1)
	if _, err := hl.WaitURL(context.Background(), "https://en.wikipedia.org/"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := hl.WaitURL(ctx, "https://en.wikipedia.org/")
	if err == nil {
		t.Fatal("expected error when the wait exceeds the deadline")
	}
}

func TestHostLimiter_Unlimited(t *testing.T) {
	hl := NewHostLimiter(0, 0)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		waited, err := hl.WaitURL(ctx, "https://en.wikipedia.org/")
		if err != nil || waited {
			t.Fatalf("unlimited limiter waited=%v err=%v", waited, err)
		}
	}
}

func TestHostLimiter_UnparseableURL(t *testing.T) {
	hl := NewHostLimiter(10, 1)
	if _, err := hl.WaitURL(context.Background(), "::not a url"); err != nil {
		t.Errorf("WaitURL() error = %v", err)
	}
	if hl.Hosts() != 1 {
		t.Errorf("Hosts() = %d, want 1", hl.Hosts())
	}
}
