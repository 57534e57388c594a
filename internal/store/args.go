package store

import (
	"github.com/olgasafonova/country-leaders-scraper/internal/leaders"
	"github.com/olgasafonova/country-leaders-scraper/internal/pipeline"
)

// LoadRunArgs selects a stored run
type LoadRunArgs struct {
	RunID int64 `json:"run_id,omitempty" jsonschema_description:"Run id (default the most recent run)"`
}

// LoadRunResult is a stored run with its leaders and failures
type LoadRunResult struct {
	Run      Run                                      `json:"run"`
	Leaders  map[leaders.CountryCode][]leaders.Leader `json:"leaders"`
	Failures []pipeline.Failure                       `json:"failures,omitempty"`
}

// RunFailuresArgs selects the run whose failures are listed
type RunFailuresArgs struct {
	RunID int64  `json:"run_id,omitempty" jsonschema_description:"Run id (default the most recent run)"`
	Stage string `json:"stage,omitempty" jsonschema_description:"Only failures of this stage: countries, leaders, enrichment or validation"`
}

// RunFailuresResult lists the failures of one run
type RunFailuresResult struct {
	RunID    int64              `json:"run_id"`
	Failures []pipeline.Failure `json:"failures"`
	Count    int                `json:"count"`
}

// FindLeaderArgs contains the leader id to look up
type FindLeaderArgs struct {
	LeaderID string `json:"leader_id" jsonschema:"required" jsonschema_description:"Leader id as sent by the API, e.g. Q7747"`
}

// FindLeaderResult holds every stored record of one leader, newest run first
type FindLeaderResult struct {
	LeaderID string           `json:"leader_id"`
	Records  []leaders.Leader `json:"records"`
	Count    int              `json:"count"`
}
