package pipeline

import "github.com/olgasafonova/country-leaders-scraper/internal/leaders"

// GetLeadersArgs contains parameters for fetching one country's leaders
type GetLeadersArgs struct {
	Country string `json:"country" jsonschema:"required" jsonschema_description:"Country code as returned by leaders_list_countries (e.g. be, fr, us)"`
	Enrich  *bool  `json:"enrich,omitempty" jsonschema_description:"Fetch the Wikipedia intro for each leader (default true)"`
}

// GetLeadersResult is the leaders of one country
type GetLeadersResult struct {
	Country  leaders.CountryCode `json:"country"`
	Leaders  []leaders.Leader    `json:"leaders"`
	Count    int                 `json:"count"`
	Failures []Failure           `json:"failures,omitempty"`
}

// ScrapeAllArgs contains parameters for a full scrape
type ScrapeAllArgs struct {
	Countries []string `json:"countries,omitempty" jsonschema_description:"Restrict the scrape to these country codes (default all)"`
	Enrich    *bool    `json:"enrich,omitempty" jsonschema_description:"Fetch the Wikipedia intro for each leader (default true)"`
}

// ScrapeAllResult is the mapping of a full scrape plus its failures
type ScrapeAllResult struct {
	Leaders      map[leaders.CountryCode][]leaders.Leader `json:"leaders"`
	CountryCount int                                      `json:"country_count"`
	LeaderCount  int                                      `json:"leader_count"`
	Failures     []Failure                                `json:"failures,omitempty"`
}
