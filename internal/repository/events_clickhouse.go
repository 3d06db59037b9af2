package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/jmoiron/sqlx"
)

// EventFilter narrows a report query; zero values mean "any".
type EventFilter struct {
	Phone  string
	Status string
	Kind   string
	Limit  int
	Offset int
}

// EventLog archives notification events in ClickHouse.
type EventLog interface {
	InsertBatch(ctx context.Context, events []model.Event) error
	List(ctx context.Context, f EventFilter) ([]model.Event, error)
}

type chEventLog struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHEventLog(ch *sqlx.DB) EventLog {
	return &chEventLog{ch: ch}
}

const eventColumns = `event_id, aggregate, aggregate_id, kind, phone, template_id, status, error, sid, occurred_at`

// InsertBatch sends all rows in one block; the driver buffers prepared
// statement executions until commit.
func (r *chEventLog) InsertBatch(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO clinic.notification_events (`+eventColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Aggregate, e.AggregateID, e.Kind, e.Phone, e.TemplateID, e.Status, e.Error, e.SID, e.OccurredAt,
		); err != nil {
			return fmt.Errorf("append event %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

func (r *chEventLog) List(ctx context.Context, f EventFilter) ([]model.Event, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := `
		SELECT ` + eventColumns + `
		FROM clinic.notification_events FINAL
		WHERE 1 = 1
	`
	var args []any

	if f.Phone != "" {
		q += " AND phone = ?"
		args = append(args, f.Phone)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.Kind != "" {
		q += " AND kind = ?"
		args = append(args, f.Kind)
	}

	q += " ORDER BY occurred_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	var rows []model.Event
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
