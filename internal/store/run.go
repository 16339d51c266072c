package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ayusman/boardsight/internal/cups"
)

// Run is one cups detection run.
type Run struct {
	ID         string     `json:"id"`
	Required   int        `json:"required"`
	Status     string     `json:"status"`
	Result     string     `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunRepository provides access to the run history.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Create inserts a run that has just started.
func (r *RunRepository) Create(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, required, status, result, error, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Required, run.Status, run.Result, run.Error, run.StartedAt.UTC(),
	)
	return err
}

// Finish stores the outcome of a run.
func (r *RunRepository) Finish(ctx context.Context, id, status, result, errMsg string, finishedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, result = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, result, errMsg, finishedAt.UTC(), id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, required, status, result, error, started_at, finished_at
		 FROM runs WHERE id = ?`,
		id,
	)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// List returns the most recent runs first. A limit <= 0 returns every run.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, required, status, result, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	run := &Run{}
	var finished sql.NullTime
	if err := s.Scan(&run.ID, &run.Required, &run.Status, &run.Result, &run.Error, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}

// RunRecorder records cups runs in the run history.
type RunRecorder struct {
	runs *RunRepository
}

// NewRunRecorder wraps a run repository as a cups.Recorder.
func NewRunRecorder(runs *RunRepository) *RunRecorder {
	return &RunRecorder{runs: runs}
}

// RecordStart implements cups.Recorder.
func (r *RunRecorder) RecordStart(ctx context.Context, rec cups.Record) error {
	return r.runs.Create(ctx, &Run{
		ID:        rec.ID,
		Required:  rec.Required,
		Status:    string(rec.Status),
		StartedAt: rec.StartedAt,
	})
}

// RecordFinish implements cups.Recorder.
func (r *RunRecorder) RecordFinish(ctx context.Context, rec cups.Record) error {
	return r.runs.Finish(ctx, rec.ID, string(rec.Status), rec.Result, rec.Error, rec.FinishedAt)
}
