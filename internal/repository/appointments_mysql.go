package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/jmoiron/sqlx"
)

const appointmentColumns = "id, name, phone, service, `date`, `time`, status, created_at, updated_at, " +
	"confirmed_at, rescheduled_at, cancelled_at"

type MySQLAppointmentStore struct {
	db *sqlx.DB
}

func NewMySQLAppointmentStore(db *sqlx.DB) *MySQLAppointmentStore {
	return &MySQLAppointmentStore{db: db}
}

// Put upserts, so seeding is idempotent.
func (s *MySQLAppointmentStore) Put(ctx context.Context, a model.Appointment) error {
	const q = "INSERT INTO appointments (" + appointmentColumns + `)
		VALUES (:id, :name, :phone, :service, :date, :time, :status, :created_at, :updated_at,
			:confirmed_at, :rescheduled_at, :cancelled_at)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name), phone = VALUES(phone), service = VALUES(service),
			` + "`date` = VALUES(`date`), `time` = VALUES(`time`)" + `,
			status = VALUES(status), updated_at = VALUES(updated_at)`
	if _, err := s.db.NamedExecContext(ctx, q, a); err != nil {
		return fmt.Errorf("put appointment %s: %w", a.ID, err)
	}
	return nil
}

func (s *MySQLAppointmentStore) Get(ctx context.Context, id string) (model.Appointment, error) {
	return s.getWith(ctx, s.db, id)
}

func (s *MySQLAppointmentStore) getWith(ctx context.Context, q sqlx.QueryerContext, id string) (model.Appointment, error) {
	var a model.Appointment
	err := sqlx.GetContext(ctx, q, &a, "SELECT "+appointmentColumns+" FROM appointments WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Appointment{}, ErrAppointmentNotFound
	}
	return a, err
}

func (s *MySQLAppointmentStore) LatestByPhone(ctx context.Context, phone string) (model.Appointment, error) {
	const q = "SELECT " + appointmentColumns + " FROM appointments WHERE phone = ? ORDER BY created_at DESC, id DESC LIMIT 1"

	var a model.Appointment
	if err := s.db.GetContext(ctx, &a, q, phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Appointment{}, ErrAppointmentNotFound
		}
		return model.Appointment{}, err
	}
	return a, nil
}

func (s *MySQLAppointmentStore) UpdateStatus(ctx context.Context, id string, to model.AppointmentStatus, at time.Time) (model.Appointment, error) {
	if !to.Valid() {
		return model.Appointment{}, ErrInvalidTransition
	}

	var a model.Appointment
	a.Transition(to, at)

	const q = `
		UPDATE appointments
		SET status = ?, updated_at = ?,
			confirmed_at = COALESCE(?, confirmed_at),
			rescheduled_at = COALESCE(?, rescheduled_at),
			cancelled_at = COALESCE(?, cancelled_at)
		WHERE id = ?
	`
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, q, a.Status, a.UpdatedAt, a.ConfirmedAt, a.RescheduledAt, a.CancelledAt, id)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("update appointment %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.Appointment{}, err
	} else if n == 0 {
		return model.Appointment{}, ErrAppointmentNotFound
	}

	out, err := s.getWith(ctx, tx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	return out, tx.Commit()
}
