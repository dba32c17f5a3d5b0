// File path: internal/sqlite/jobs.go
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Job statuses. Completed and failed are terminal; rows never leave them.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// JobFilter narrows ListJobs output.
type JobFilter struct {
	Status string
	Type   string
	Limit  int
}

// InsertJob persists a new pending job under the caller-supplied id.
func (s *Store) InsertJob(ctx context.Context, id, kind string, input json.RawMessage) (Job, error) {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	now := time.Now().UTC()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
                        INSERT INTO jobs (id, type, status, input, created_at, updated_at)
                        VALUES (?, ?, 'pending', ?, ?, ?)`,
			id, kind, string(input), now, now); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		return nil
	})
	if err != nil {
		return Job{}, err
	}
	return s.GetJob(ctx, id)
}

// MarkJobRunning claims a pending job for a worker. The compare-and-set on
// status means exactly one worker wins; losers get ErrInvalidState.
func (s *Store) MarkJobRunning(ctx context.Context, id string) error {
	return s.transitionJob(ctx, id, JobStatusPending, JobStatusRunning, nil, "")
}

// CompleteJob finishes a running job with a result payload.
func (s *Store) CompleteJob(ctx context.Context, id string, result json.RawMessage) error {
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	return s.transitionJob(ctx, id, JobStatusRunning, JobStatusCompleted, result, "")
}

// FailJob finishes a running job with an error message.
func (s *Store) FailJob(ctx context.Context, id, message string) error {
	return s.transitionJob(ctx, id, JobStatusRunning, JobStatusFailed, nil, message)
}

// CancelJob fails a job that has not started yet. Running or terminal jobs
// return ErrInvalidState.
func (s *Store) CancelJob(ctx context.Context, id string) error {
	return s.transitionJob(ctx, id, JobStatusPending, JobStatusFailed, nil, "canceled")
}

func (s *Store) transitionJob(ctx context.Context, id, from, to string, result json.RawMessage, message string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var res sql.Result
		var err error
		switch {
		case result != nil:
			res, err = tx.ExecContext(ctx, `
                                UPDATE jobs SET status = ?, result = ?, updated_at = ?
                                WHERE id = ? AND status = ?`,
				to, string(result), time.Now().UTC(), id, from)
		case message != "":
			res, err = tx.ExecContext(ctx, `
                                UPDATE jobs SET status = ?, error = ?, updated_at = ?
                                WHERE id = ? AND status = ?`,
				to, message, time.Now().UTC(), id, from)
		default:
			res, err = tx.ExecContext(ctx, `
                                UPDATE jobs SET status = ?, updated_at = ?
                                WHERE id = ? AND status = ?`,
				to, time.Now().UTC(), id, from)
		}
		if err != nil {
			return fmt.Errorf("transition job %s to %s: %w", id, to, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("transition job rows: %w", err)
		}
		if affected == 0 {
			var exists int
			if err := tx.GetContext(ctx, &exists, `SELECT COUNT(1) FROM jobs WHERE id = ?`, id); err != nil {
				return fmt.Errorf("check job existence: %w", err)
			}
			if exists == 0 {
				return ErrNotFound
			}
			return ErrInvalidState
		}
		return nil
	})
}

// GetJob fetches a single job row.
func (s *Store) GetJob(ctx context.Context, id string) (Job, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM jobs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("select job: %w", err)
	}
	return row.toJob(), nil
}

// ListJobs returns a snapshot of jobs matching the filter, newest first.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	clauses := []string{}
	args := []interface{}{}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, filter.Type)
	}
	query := `SELECT * FROM jobs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	jobs := make([]Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.toJob())
	}
	return jobs, nil
}

// DeleteJob removes a job row. Operator surface only; pipelines never call it.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete job rows: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
