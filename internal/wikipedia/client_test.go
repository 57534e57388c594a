package wikipedia

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	apierrors "github.com/olgasafonova/country-leaders-scraper/internal/errors"
)

const macronIntro = "Emmanuel Jean-Michel Frédéric Macron (born 21 December 1977) is a French politician who has served as President of France since 2017. He was previously Minister of the Economy."

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 0
	c := NewClient(cfg)
	c.RetryBackoff = time.Millisecond
	t.Cleanup(c.Close)
	return c
}

func fixtureHandler(t *testing.T, name string, hits *atomic.Int32) http.HandlerFunc {
	t.Helper()
	page, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}
}

func TestIntro_Success(t *testing.T) {
	var gotUA string
	page := fixtureHandler(t, "en_macron.html", nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		page(w, r)
	}))
	defer server.Close()

	client := newTestClient(t)
	intro, err := client.Intro(context.Background(), server.URL+"/wiki/Emmanuel_Macron")
	if err != nil {
		t.Fatalf("Intro() error = %v", err)
	}
	if intro != macronIntro {
		t.Errorf("Intro() = %q", intro)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, DefaultUserAgent)
	}
}

func TestIntro_CachedAfterFirstFetch(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(fixtureHandler(t, "en_macron.html", &hits))
	defer server.Close()

	client := newTestClient(t)
	pageURL := server.URL + "/wiki/Emmanuel_Macron"
	for i := 0; i < 3; i++ {
		if _, err := client.Intro(context.Background(), pageURL); err != nil {
			t.Fatalf("Intro() call %d error = %v", i, err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestIntro_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.Intro(context.Background(), server.URL+"/wiki/Nobody")
	if !apierrors.IsNotFound(err) {
		t.Fatalf("Intro() error = %v, want NotFoundError", err)
	}
	var nf *apierrors.NotFoundError
	if errors.As(err, &nf) && nf.Source != "wikipedia" {
		t.Errorf("Source = %q, want wikipedia", nf.Source)
	}
}

func TestIntro_ServerError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.Intro(context.Background(), server.URL+"/wiki/Flaky")
	if err == nil {
		t.Fatal("expected error for 502")
	}
	if apierrors.IsNotFound(err) {
		t.Errorf("502 must not be reported as not found: %v", err)
	}
	if hits.Load() < 2 {
		t.Errorf("server hits = %d, want a retry", hits.Load())
	}
}

func TestIntro_FailingHostDoesNotBlockOthers(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	var hits atomic.Int32
	healthy := httptest.NewServer(fixtureHandler(t, "en_macron.html", &hits))
	defer healthy.Close()

	client := newTestClient(t)
	for i := 0; i < 6; i++ {
		if _, err := client.Intro(context.Background(), fmt.Sprintf("%s/wiki/Page_%d", broken.URL, i)); err == nil {
			t.Fatalf("call %d to broken host succeeded", i)
		}
	}

	intro, err := client.Intro(context.Background(), healthy.URL+"/wiki/Emmanuel_Macron")
	if err != nil {
		t.Fatalf("Intro() on healthy host error = %v", err)
	}
	if intro != macronIntro || hits.Load() != 1 {
		t.Errorf("intro = %q, hits = %d", intro, hits.Load())
	}
}

func TestIntro_GoneIsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.Intro(context.Background(), server.URL+"/wiki/Gone")
	if apierrors.StatusCode(err) != http.StatusGone {
		t.Errorf("StatusCode(err) = %d, want 410 (err = %v)", apierrors.StatusCode(err), err)
	}
}

func TestIntro_NoIntro(t *testing.T) {
	server := httptest.NewServer(fixtureHandler(t, "noparagraph.html", nil))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.Intro(context.Background(), server.URL+"/wiki/Empty")
	if !errors.Is(err, ErrNoIntro) {
		t.Errorf("Intro() error = %v, want ErrNoIntro", err)
	}
}

func TestIntro_InvalidURL(t *testing.T) {
	client := newTestClient(t)

	for _, raw := range []string{"", "   ", "ftp://en.wikipedia.org/wiki/X", "/wiki/Relative", "http://"} {
		t.Run(raw, func(t *testing.T) {
			_, err := client.Intro(context.Background(), raw)
			if !apierrors.IsValidation(err) {
				t.Errorf("Intro(%q) error = %v, want ValidationError", raw, err)
			}
		})
	}
}

func TestGetIntroMCP(t *testing.T) {
	server := httptest.NewServer(fixtureHandler(t, "fr_ltr.html", nil))
	defer server.Close()

	client := newTestClient(t)
	pageURL := server.URL + "/wiki/Alexander_De_Croo"
	result, err := client.GetIntroMCP(context.Background(), GetIntroArgs{URL: pageURL})
	if err != nil {
		t.Fatalf("GetIntroMCP() error = %v", err)
	}
	if result.URL != pageURL {
		t.Errorf("URL = %q", result.URL)
	}
	want := "Alexander De Croo, né le 3 novembre 1975 à Vilvorde, est un homme d'État belge, membre de l'Open VLD. Il est Premier ministre de Belgique depuis 2020."
	if result.Intro != want {
		t.Errorf("Intro = %q", result.Intro)
	}
}
