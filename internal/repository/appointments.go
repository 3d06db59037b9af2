package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/model"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

// AppointmentStore holds booked appointments keyed by normalized phone.
type AppointmentStore interface {
	Put(ctx context.Context, a model.Appointment) error
	Get(ctx context.Context, id string) (model.Appointment, error)
	// LatestByPhone returns the most recently booked appointment for phone.
	LatestByPhone(ctx context.Context, phone string) (model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, to model.AppointmentStatus, at time.Time) (model.Appointment, error)
}
