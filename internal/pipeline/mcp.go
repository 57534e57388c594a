package pipeline

import (
	"context"

	"github.com/olgasafonova/country-leaders-scraper/internal/leaders"
)

// GetLeadersMCP is the MCP wrapper for RunCountry
func (p *Pipeline) GetLeadersMCP(ctx context.Context, args GetLeadersArgs) (GetLeadersResult, error) {
	enrich := p.enrich
	if args.Enrich != nil {
		enrich = *args.Enrich
	}

	country := leaders.NormalizeCountry(args.Country)
	rs, err := p.runSingle(ctx, country, enrich)
	if err != nil {
		return GetLeadersResult{}, err
	}

	list := rs.Leaders[country]
	return GetLeadersResult{
		Country:  country,
		Leaders:  list,
		Count:    len(list),
		Failures: rs.Failures,
	}, nil
}

// ScrapeAllMCP is the MCP wrapper for Run
func (p *Pipeline) ScrapeAllMCP(ctx context.Context, args ScrapeAllArgs) (ScrapeAllResult, error) {
	run := *p
	run.countries = nil
	if len(args.Countries) > 0 {
		codes := make([]leaders.CountryCode, len(args.Countries))
		for i, c := range args.Countries {
			codes[i] = leaders.CountryCode(c)
		}
		WithCountries(codes...)(&run)
	} else {
		run.countries = p.countries
	}
	if args.Enrich != nil {
		run.enrich = *args.Enrich && p.enricher != nil
	}

	rs, err := run.Run(ctx)
	if err != nil {
		return ScrapeAllResult{}, err
	}
	return ScrapeAllResult{
		Leaders:      rs.Leaders,
		CountryCount: len(rs.Leaders),
		LeaderCount:  rs.LeaderCount(),
		Failures:     rs.Failures,
	}, nil
}
