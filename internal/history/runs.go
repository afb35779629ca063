package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"albumrun/internal/execution"
	"albumrun/internal/report"
)

const runColumns = `id, root, started_at, finished_at, max_jobs, max_retries,
    total, succeeded, failed, skipped, dry_run, interrupted`

// BeginRun records a new run and returns it with a fresh id.
func (s *Store) BeginRun(ctx context.Context, params RunParams) (*Run, error) {
	id := strings.TrimSpace(params.ID)
	if id == "" {
		id = uuid.NewString()
	}
	run := &Run{
		ID:         id,
		Root:       params.Root,
		StartedAt:  time.Now().UTC(),
		MaxJobs:    params.MaxJobs,
		MaxRetries: params.MaxRetries,
		DryRun:     params.DryRun,
	}
	_, err := s.exec(ctx,
		`INSERT INTO runs (id, root, started_at, max_jobs, max_retries, dry_run)
         VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Root,
		formatTime(run.StartedAt),
		run.MaxJobs,
		run.MaxRetries,
		boolToInt(run.DryRun),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// RecordResult stores the terminal outcome of one unit.
func (s *Store) RecordResult(ctx context.Context, runID string, result execution.JobResult) error {
	_, err := s.exec(ctx,
		`INSERT OR REPLACE INTO results (
            run_id, position, unit_id, path, kind, status, attempts,
            log_path, duration_ms, error, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		result.Index,
		result.Unit.ID,
		result.Unit.Path,
		string(result.Unit.Kind),
		string(result.Status),
		result.AttemptsUsed,
		nullableString(result.LogPath),
		result.Duration.Milliseconds(),
		nullableString(result.Error),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert result for %s: %w", result.Unit.ID, err)
	}
	return nil
}

// FinishRun stores the final counts of a run. Interrupted units are counted
// with the skipped ones; their per-unit rows keep the interrupted status.
func (s *Store) FinishRun(ctx context.Context, runID string, summary report.RunSummary, interrupted bool) error {
	res, err := s.exec(ctx,
		`UPDATE runs
         SET finished_at = ?, total = ?, succeeded = ?, failed = ?, skipped = ?, interrupted = ?
         WHERE id = ?`,
		formatTime(time.Now()),
		summary.Total,
		len(summary.Succeeded),
		len(summary.Failed),
		len(summary.Skipped)+len(summary.Interrupted),
		boolToInt(interrupted),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx = orBackground(ctx)
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run whose id equals or starts with id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	ctx = orBackground(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(id), id)
	if err != nil {
		return nil, fmt.Errorf("find run by prefix: %w", err)
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
	}
}

// Results returns the recorded unit outcomes of a run in input order.
func (s *Store) Results(ctx context.Context, runID string) ([]UnitResult, error) {
	ctx = orBackground(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, position, unit_id, path, kind, status, attempts,
                log_path, duration_ms, error, finished_at
         FROM results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []UnitResult
	for rows.Next() {
		var (
			r          UnitResult
			logPath    sql.NullString
			errText    sql.NullString
			durationMS int64
			finished   string
		)
		if err := rows.Scan(&r.RunID, &r.Position, &r.UnitID, &r.Path, &r.Kind, &r.Status,
			&r.Attempts, &logPath, &durationMS, &errText, &finished); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.LogPath = logPath.String
		r.Error = errText.String
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.FinishedAt = parseTime(finished)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run         Run
		started     string
		finished    sql.NullString
		dryRun      int
		interrupted int
	)
	if err := row.Scan(&run.ID, &run.Root, &started, &finished, &run.MaxJobs, &run.MaxRetries,
		&run.Total, &run.Succeeded, &run.Failed, &run.Skipped, &dryRun, &interrupted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(started)
	if finished.Valid {
		run.FinishedAt = parseTime(finished.String)
	}
	run.DryRun = dryRun != 0
	run.Interrupted = interrupted != 0
	return &run, nil
}

// timeLayout is fixed width so stored timestamps sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
