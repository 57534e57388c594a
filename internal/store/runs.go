package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/olgasafonova/country-leaders-scraper/internal/leaders"
	"github.com/olgasafonova/country-leaders-scraper/internal/pipeline"
)

// Run is a stored run summary.
type Run struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Countries  int       `json:"countries"`
	Leaders    int       `json:"leaders"`
	Failures   int       `json:"failures"`
}

// SaveRun stores rs in a single transaction and returns the new run id.
// Leaders are stored as their full JSON record so unknown API fields survive.
func (d *DB) SaveRun(ctx context.Context, rs *pipeline.ResultSet, startedAt, finishedAt time.Time) (int64, error) {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
INSERT INTO runs (started_at, finished_at, countries, leaders, failures)
VALUES (?, ?, ?, ?, ?);`,
		startedAt.UTC().Format(time.RFC3339Nano), finishedAt.UTC().Format(time.RFC3339Nano),
		len(rs.Leaders), rs.LeaderCount(), len(rs.Failures),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, country := range rs.Countries() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO run_countries (run_id, country) VALUES (?, ?);`, runID, string(country)); err != nil {
			return 0, fmt.Errorf("insert country %s: %w", country, err)
		}
		for pos, l := range rs.Leaders[country] {
			record, err := json.Marshal(l)
			if err != nil {
				return 0, fmt.Errorf("encode leader %s: %w", l.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO leaders (run_id, country, position, leader_id, first_name, last_name, wikipedia_url, intro, record)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
				runID, string(country), pos, l.ID, l.FirstName, l.LastName, l.WikipediaURL,
				nullString(l.WikipediaIntro), string(record),
			); err != nil {
				return 0, fmt.Errorf("insert leader %s/%s: %w", country, l.ID, err)
			}
		}
	}

	for _, f := range rs.Failures {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO failures (run_id, stage, country, leader_id, url, error)
VALUES (?, ?, ?, ?, ?, ?);`,
			runID, f.Stage, string(f.Country), f.LeaderID, f.URL, f.Error,
		); err != nil {
			return 0, fmt.Errorf("insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// GetRun returns the summary of a run.
func (d *DB) GetRun(ctx context.Context, runID int64) (Run, error) {
	var (
		r                 Run
		started, finished string
	)
	err := d.Pool.QueryRowContext(ctx, `
SELECT id, started_at, finished_at, countries, leaders, failures FROM runs WHERE id = ?;`, runID,
	).Scan(&r.ID, &started, &finished, &r.Countries, &r.Leaders, &r.Failures)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return r, nil
}

// LatestRunID returns the id of the most recent run.
func (d *DB) LatestRunID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := d.Pool.QueryRowContext(ctx, `SELECT MAX(id) FROM runs;`).Scan(&id); err != nil {
		return 0, err
	}
	if !id.Valid {
		return 0, ErrRunNotFound
	}
	return id.Int64, nil
}

// LoadRun returns the country -> leaders mapping of a run, leaders in stored order.
func (d *DB) LoadRun(ctx context.Context, runID int64) (map[leaders.CountryCode][]leaders.Leader, error) {
	if _, err := d.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	out := make(map[leaders.CountryCode][]leaders.Leader)
	rows, err := d.Pool.QueryContext(ctx, `SELECT country FROM run_countries WHERE run_id = ?;`, runID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			rows.Close()
			return nil, err
		}
		out[leaders.CountryCode(c)] = []leaders.Leader{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = d.Pool.QueryContext(ctx, `
SELECT country, record FROM leaders WHERE run_id = ? ORDER BY country, position;`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c, record string
		if err := rows.Scan(&c, &record); err != nil {
			return nil, err
		}
		var l leaders.Leader
		if err := json.Unmarshal([]byte(record), &l); err != nil {
			return nil, fmt.Errorf("decode leader in run %d: %w", runID, err)
		}
		key := leaders.CountryCode(c)
		out[key] = append(out[key], l)
	}
	return out, rows.Err()
}

// Failures lists the failures recorded for a run, in insertion order.
func (d *DB) Failures(ctx context.Context, runID int64) ([]pipeline.Failure, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT stage, country, leader_id, url, error FROM failures WHERE run_id = ? ORDER BY id;`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pipeline.Failure
	for rows.Next() {
		var f pipeline.Failure
		var country string
		if err := rows.Scan(&f.Stage, &country, &f.LeaderID, &f.URL, &f.Error); err != nil {
			return nil, err
		}
		f.Country = leaders.CountryCode(country)
		out = append(out, f)
	}
	return out, rows.Err()
}

// FindLeader returns every stored run's record for a leader id, newest run first.
func (d *DB) FindLeader(ctx context.Context, leaderID string) ([]leaders.Leader, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT record FROM leaders WHERE leader_id = ? ORDER BY run_id DESC;`, leaderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leaders.Leader
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		var l leaders.Leader
		if err := json.Unmarshal([]byte(record), &l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
