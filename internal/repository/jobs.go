package repository

import (
	"context"
	"errors"

	"github.com/jmehdipour/clinic-notify/internal/model"
)

var (
	ErrJobNotFound       = errors.New("reminder job not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// JobStore persists reminder jobs. Put must be durable before it returns;
// callers arm timers only after a successful Put.
type JobStore interface {
	Put(ctx context.Context, job model.ReminderJob) error
	Get(ctx context.Context, id string) (model.ReminderJob, error)
	// UpdateStatus merges u into the job unless it is already terminal, in which
	// case it returns (false, nil). Updates for one id are serialized.
	UpdateStatus(ctx context.Context, id string, u model.StatusUpdate) (bool, error)
	ListAll(ctx context.Context) ([]model.ReminderJob, error)
}

func checkTransition(u model.StatusUpdate) error {
	if !u.Status.Terminal() {
		return ErrInvalidTransition
	}
	return nil
}
