package store

import (
	"context"
	"strconv"
	"strings"

	apierrors "github.com/olgasafonova/country-leaders-scraper/internal/errors"
	"github.com/olgasafonova/country-leaders-scraper/internal/leaders"
	"github.com/olgasafonova/country-leaders-scraper/internal/pipeline"
)

// resolveRun maps run id 0 to the most recent run.
func (d *DB) resolveRun(ctx context.Context, runID int64) (int64, error) {
	if runID < 0 {
		return 0, apierrors.NewValidationError("run_id", strconv.FormatInt(runID, 10), "must be positive")
	}
	if runID == 0 {
		return d.LatestRunID(ctx)
	}
	return runID, nil
}

// LoadRunMCP is the MCP wrapper for LoadRun
func (d *DB) LoadRunMCP(ctx context.Context, args LoadRunArgs) (LoadRunResult, error) {
	id, err := d.resolveRun(ctx, args.RunID)
	if err != nil {
		return LoadRunResult{}, err
	}
	run, err := d.GetRun(ctx, id)
	if err != nil {
		return LoadRunResult{}, err
	}
	byCountry, err := d.LoadRun(ctx, id)
	if err != nil {
		return LoadRunResult{}, err
	}
	failures, err := d.Failures(ctx, id)
	if err != nil {
		return LoadRunResult{}, err
	}
	return LoadRunResult{Run: run, Leaders: byCountry, Failures: failures}, nil
}

// RunFailuresMCP is the MCP wrapper for Failures
func (d *DB) RunFailuresMCP(ctx context.Context, args RunFailuresArgs) (RunFailuresResult, error) {
	id, err := d.resolveRun(ctx, args.RunID)
	if err != nil {
		return RunFailuresResult{}, err
	}
	if _, err := d.GetRun(ctx, id); err != nil {
		return RunFailuresResult{}, err
	}
	all, err := d.Failures(ctx, id)
	if err != nil {
		return RunFailuresResult{}, err
	}

	stage := strings.ToLower(strings.TrimSpace(args.Stage))
	failures := make([]pipeline.Failure, 0, len(all))
	for _, f := range all {
		if stage == "" || f.Stage == stage {
			failures = append(failures, f)
		}
	}
	return RunFailuresResult{RunID: id, Failures: failures, Count: len(failures)}, nil
}

// FindLeaderMCP is the MCP wrapper for FindLeader
func (d *DB) FindLeaderMCP(ctx context.Context, args FindLeaderArgs) (FindLeaderResult, error) {
	id := strings.TrimSpace(args.LeaderID)
	if id == "" {
		return FindLeaderResult{}, apierrors.NewValidationError("leader_id", args.LeaderID, "must not be empty")
	}
	records, err := d.FindLeader(ctx, id)
	if err != nil {
		return FindLeaderResult{}, err
	}
	if records == nil {
		records = []leaders.Leader{}
	}
	return FindLeaderResult{LeaderID: id, Records: records, Count: len(records)}, nil
}
