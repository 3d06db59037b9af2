package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `id, recipient, template_id, variables, fire_at, status, created_at, updated_at,
	delivered_at, cancelled_at, sid, error`

// MySQLJobStore keeps jobs in the scheduled_jobs table.
type MySQLJobStore struct {
	db *sqlx.DB
}

func NewMySQLJobStore(db *sqlx.DB) *MySQLJobStore {
	return &MySQLJobStore{db: db}
}

func (s *MySQLJobStore) Put(ctx context.Context, job model.ReminderJob) error {
	const q = `
		INSERT INTO scheduled_jobs (` + jobColumns + `)
		VALUES (:id, :recipient, :template_id, :variables, :fire_at, :status, :created_at, :updated_at,
			:delivered_at, :cancelled_at, :sid, :error)
	`
	if _, err := s.db.NamedExecContext(ctx, q, job); err != nil {
		return fmt.Errorf("put job %s: %w", job.ID, err)
	}
	return nil
}

func (s *MySQLJobStore) Get(ctx context.Context, id string) (model.ReminderJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE id = ?`

	var j model.ReminderJob
	if err := s.db.GetContext(ctx, &j, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ReminderJob{}, ErrJobNotFound
		}
		return model.ReminderJob{}, err
	}
	return j, nil
}

// UpdateStatus relies on the row-level compare-and-set in the WHERE clause.
func (s *MySQLJobStore) UpdateStatus(ctx context.Context, id string, u model.StatusUpdate) (bool, error) {
	if err := checkTransition(u); err != nil {
		return false, err
	}

	var j model.ReminderJob
	j.Apply(u)

	const q = `
		UPDATE scheduled_jobs
		SET status = ?, updated_at = ?, delivered_at = ?, cancelled_at = ?, sid = ?, error = ?
		WHERE id = ? AND status = ?
	`
	res, err := s.db.ExecContext(ctx, q,
		j.Status, j.UpdatedAt, j.DeliveredAt, j.CancelledAt, j.MessageSID, j.Error,
		id, model.JobScheduled,
	)
	if err != nil {
		return false, fmt.Errorf("update job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	// nothing changed: either missing or already terminal
	var status model.JobStatus
	if err := s.db.GetContext(ctx, &status, `SELECT status FROM scheduled_jobs WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrJobNotFound
		}
		return false, err
	}
	return false, nil
}

func (s *MySQLJobStore) ListAll(ctx context.Context) ([]model.ReminderJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM scheduled_jobs ORDER BY id`

	var jobs []model.ReminderJob
	if err := s.db.SelectContext(ctx, &jobs, q); err != nil {
		return nil, err
	}
	return jobs, nil
}
