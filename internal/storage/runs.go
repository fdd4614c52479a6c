package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hoanghai1803/minernews/internal/models"
)

// CreateRun inserts a new run record in the running state.
func (s *Store) CreateRun(ctx context.Context, run *models.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status, model)
		 VALUES (?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), string(run.Status), run.Model,
	)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run. It returns ErrNotFound if the run
// does not exist.
func (s *Store) FinishRun(ctx context.Context, run *models.Run) error {
	var finishedAt *string
	if run.FinishedAt != nil {
		v := formatTime(*run.FinishedAt)
		finishedAt = &v
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
			finished_at = ?, status = ?, model = ?, candidates = ?,
			attempted = ?, written = ?, skipped = ?, error = ?
		 WHERE id = ?`,
		finishedAt, string(run.Status), run.Model, run.Candidates,
		run.Attempted, run.Written, run.Skipped, run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", run.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for run %s: %w", run.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun returns the run with the given ID.
// Returns nil, ErrNotFound if no matching row exists.
func (s *Store) GetRun(ctx context.Context, id string) (*models.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return &runs[0], nil
}

// GetRecentRuns returns the most recent runs, ordered by started_at DESC and
// limited to the specified count.
func (s *Store) GetRecentRuns(ctx context.Context, limit int) ([]models.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+`
		 FROM runs
		 ORDER BY started_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

const runColumns = `id, started_at, finished_at, status, model, candidates, attempted, written, skipped, error`

func scanRuns(rows *sql.Rows) ([]models.Run, error) {
	runs := []models.Run{}
	for rows.Next() {
		var (
			run        models.Run
			startedAt  string
			finishedAt sql.NullString
			status     string
		)
		if err := rows.Scan(
			&run.ID, &startedAt, &finishedAt, &status, &run.Model,
			&run.Candidates, &run.Attempted, &run.Written, &run.Skipped, &run.Error,
		); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		run.StartedAt = parseTime(startedAt)
		if finishedAt.Valid {
			run.FinishedAt = parseTimePtr(&finishedAt.String)
		}
		run.Status = models.RunStatus(status)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}
	return runs, nil
}
