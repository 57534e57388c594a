// Package pipeline drives a scrape: authenticate, list countries, fetch each
// country's leaders, enrich them with Wikipedia intros and fold everything into
// a ResultSet. Per-country and per-leader failures are recorded and skipped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apierrors "github.com/olgasafonova/country-leaders-scraper/internal/errors"
	"github.com/olgasafonova/country-leaders-scraper/internal/leaders"
	"github.com/olgasafonova/country-leaders-scraper/internal/wikipedia"
	"github.com/olgasafonova/country-leaders-scraper/metrics"
	"github.com/olgasafonova/country-leaders-scraper/tracing"
)

// LeaderSource is the leaders API as the pipeline sees it.
type LeaderSource interface {
	Authenticate(ctx context.Context) error
	ListCountries(ctx context.Context) ([]leaders.CountryCode, error)
	ListLeaders(ctx context.Context, country leaders.CountryCode) ([]leaders.Leader, error)
}

// Enricher returns the introductory paragraph of a Wikipedia page.
type Enricher interface {
	Intro(ctx context.Context, pageURL string) (string, error)
}

// Pipeline runs scrapes. It is sequential: one country, then one leader at a time.
type Pipeline struct {
	source    LeaderSource
	enricher  Enricher
	logger    *slog.Logger
	countries []leaders.CountryCode
	enrich    bool
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithCountries restricts a run to the given countries.
func WithCountries(countries ...leaders.CountryCode) Option {
	return func(p *Pipeline) {
		for _, c := range countries {
			if c = leaders.NormalizeCountry(string(c)); c != "" {
				p.countries = append(p.countries, c)
			}
		}
	}
}

// WithoutEnrichment skips Wikipedia lookups; intros stay as the API sent them.
func WithoutEnrichment() Option {
	return func(p *Pipeline) {
		p.enrich = false
	}
}

// New creates a pipeline. enricher may be nil when enrichment is disabled.
func New(source LeaderSource, enricher Enricher, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:   source,
		enricher: enricher,
		logger:   slog.Default(),
		enrich:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.enricher == nil {
		p.enrich = false
	}
	return p
}

// Run performs a full scrape. Authentication and country listing failures are
// fatal and returned. Anything after that is recorded in ResultSet.Failures.
// On cancellation the partial result is returned together with ctx.Err().
func (p *Pipeline) Run(ctx context.Context) (*ResultSet, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "pipeline.run")
	defer span.End()
	defer func() { metrics.RunDuration.Observe(time.Since(start).Seconds()) }()

	if err := p.source.Authenticate(ctx); err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	available, err := p.source.ListCountries(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("failed to list countries: %w", err)
	}

	rs := NewResultSet()
	countries := p.selectCountries(available, rs)
	p.logger.Info("scrape started", "countries", len(countries), "enrich", p.enrich)

	for _, country := range countries {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("scrape cancelled", "remaining_from", country, "error", err)
			tracing.RecordError(span, err)
			return rs, err
		}
		_ = p.runCountry(ctx, country, p.enrich, rs)
	}
	if err := ctx.Err(); err != nil {
		p.logger.Warn("scrape cancelled during the last country", "error", err)
		tracing.RecordError(span, err)
		return rs, err
	}

	span.SetAttributes(
		attribute.Int("pipeline.countries", len(rs.Leaders)),
		attribute.Int("pipeline.leaders", rs.LeaderCount()),
		attribute.Int("pipeline.failures", len(rs.Failures)),
	)
	p.logger.Info("scrape finished",
		"countries", len(rs.Leaders),
		"leaders", rs.LeaderCount(),
		"enriched", rs.Enriched(),
		"failures", len(rs.Failures),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return rs, nil
}

// RunCountry scrapes a single country. The session is acquired lazily by the
// source. A failed leaders fetch is returned as the error; enrichment failures
// are only recorded.
func (p *Pipeline) RunCountry(ctx context.Context, country leaders.CountryCode) (*ResultSet, error) {
	return p.runSingle(ctx, country, p.enrich)
}

// runSingle scrapes one user-supplied country code, normalized to the API's
// lowercase convention.
func (p *Pipeline) runSingle(ctx context.Context, country leaders.CountryCode, enrich bool) (*ResultSet, error) {
	country = leaders.NormalizeCountry(string(country))
	if err := leaders.ValidateCountry(country); err != nil {
		return nil, err
	}
	rs := NewResultSet()
	err := p.runCountry(ctx, country, enrich && p.enricher != nil, rs)
	return rs, err
}

// selectCountries applies WithCountries to the API list, keeping API order and
// spelling. Codes are matched case-insensitively. Requested countries the API
// does not offer are recorded as failures.
func (p *Pipeline) selectCountries(available []leaders.CountryCode, rs *ResultSet) []leaders.CountryCode {
	if len(p.countries) == 0 {
		return available
	}

	offered := make(map[leaders.CountryCode]bool, len(available))
	for _, c := range available {
		offered[leaders.NormalizeCountry(string(c))] = true
	}
	wanted := make(map[leaders.CountryCode]bool, len(p.countries))
	for _, c := range p.countries {
		if !offered[c] && !wanted[c] {
			p.logger.Warn("requested country not offered by API", "country", c)
			rs.Fail(Failure{Stage: StageCountries, Country: c, Error: "country not offered by API"})
		}
		wanted[c] = true
	}

	var out []leaders.CountryCode
	for _, c := range available {
		if wanted[leaders.NormalizeCountry(string(c))] {
			out = append(out, c)
		}
	}
	return out
}

func (p *Pipeline) runCountry(ctx context.Context, country leaders.CountryCode, enrich bool, rs *ResultSet) error {
	ctx, span := tracing.StartSpan(ctx, "pipeline.country")
	defer span.End()
	tracing.AddLeaderAttributes(span, string(country), "")

	list, err := p.source.ListLeaders(ctx, country)
	var invalid *apierrors.InvalidRecordsError
	switch {
	case errors.As(err, &invalid):
		for _, rec := range invalid.Records {
			p.logger.Warn("dropping undecodable leader", "country", country, "index", rec.Index, "id", rec.ID, "error", rec.Err)
			rs.Fail(Failure{Stage: StageValidation, Country: country, LeaderID: rec.ID, Error: rec.Err.Error()})
		}
	case err != nil:
		tracing.RecordError(span, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.logger.Warn("skipping country", "country", country, "error", err)
		rs.Fail(Failure{Stage: StageLeaders, Country: country, Error: err.Error()})
		metrics.RecordCountry(string(country), 0, false)
		return err
	}

	rs.Ensure(country)
	seen := make(map[string]bool, len(list))
	added := 0
	for _, l := range list {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("country interrupted", "country", country, "leaders_done", added, "error", err)
			return err
		}
		if err := l.Validate(); err != nil {
			p.logger.Warn("dropping leader", "country", country, "name", l.FullName(), "error", err)
			rs.Fail(Failure{Stage: StageValidation, Country: country, URL: l.WikipediaURL, Error: err.Error()})
			continue
		}
		if seen[l.ID] {
			p.logger.Warn("dropping duplicate leader", "country", country, "id", l.ID)
			rs.Fail(Failure{Stage: StageValidation, Country: country, LeaderID: l.ID, Error: "duplicate leader id"})
			continue
		}
		seen[l.ID] = true

		if enrich {
			p.enrichLeader(ctx, country, &l, rs)
			if err := ctx.Err(); err != nil {
				p.logger.Warn("country interrupted", "country", country, "leaders_done", added, "error", err)
				return err
			}
		}
		rs.Add(country, l)
		added++
	}

	span.SetAttributes(attribute.Int("pipeline.leaders", added))
	metrics.RecordCountry(string(country), added, true)
	p.logger.Debug("country done", "country", country, "leaders", added)
	return nil
}

func (p *Pipeline) enrichLeader(ctx context.Context, country leaders.CountryCode, l *leaders.Leader, rs *ResultSet) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.enrich")
	defer span.End()
	tracing.AddLeaderAttributes(span, string(country), l.ID)
	tracing.AddPageAttributes(span, l.WikipediaURL)

	l.WikipediaIntro = nil
	if l.WikipediaURL == "" {
		err := apierrors.NewValidationError("wikipedia_url", "", "leader has no Wikipedia URL")
		p.recordEnrichFailure(country, l, err, rs)
		metrics.RecordEnrichment("error")
		return
	}

	intro, err := p.enricher.Intro(ctx, l.WikipediaURL)
	if err != nil {
		tracing.RecordError(span, err)
		if ctx.Err() != nil {
			return
		}
		p.recordEnrichFailure(country, l, err, rs)
		metrics.RecordEnrichment(enrichOutcome(err))
		return
	}
	l.SetIntro(intro)
	metrics.RecordEnrichment("ok")
}

func (p *Pipeline) recordEnrichFailure(country leaders.CountryCode, l *leaders.Leader, err error, rs *ResultSet) {
	p.logger.Warn("enrichment failed",
		"country", country,
		"id", l.ID,
		"url", l.WikipediaURL,
		"error", err,
	)
	rs.Fail(Failure{
		Stage:    StageEnrichment,
		Country:  country,
		LeaderID: l.ID,
		URL:      l.WikipediaURL,
		Error:    err.Error(),
	})
}

func enrichOutcome(err error) string {
	switch {
	case apierrors.IsNotFound(err):
		return "not_found"
	case errors.Is(err, wikipedia.ErrNoIntro):
		return "no_intro"
	default:
		return "error"
	}
}
