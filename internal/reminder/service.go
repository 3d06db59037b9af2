package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/metrics"
	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/jmehdipour/clinic-notify/internal/timer"
	"github.com/jmehdipour/clinic-notify/internal/util"
	"go.uber.org/zap"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrAlreadyFinal   = errors.New("reminder already final")
)

type ScheduleRequest struct {
	Phone      string
	TemplateID string
	Variables  model.Variables
	SendAt     time.Time
}

// Service persists reminder jobs and keeps the timer engine in step with the store.
type Service struct {
	deps        Deps
	timers      *timer.Engine
	dispatcher  *Dispatcher
	countryCode string
	lateFire    bool
}

type ServiceOpts struct {
	CountryCode       string
	LateFireIfOverdue bool
}

func NewService(deps Deps, timers *timer.Engine, dispatcher *Dispatcher, opts ServiceOpts) *Service {
	return &Service{
		deps:        deps.withDefaults(),
		timers:      timers,
		dispatcher:  dispatcher,
		countryCode: opts.CountryCode,
		lateFire:    opts.LateFireIfOverdue,
	}
}

// Schedule validates req, stores the job and arms its timer, in that order.
// A store failure leaves nothing armed.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (model.ReminderJob, error) {
	phone := util.NormalizePhone(req.Phone, s.countryCode)
	switch {
	case phone == "":
		return model.ReminderJob{}, fmt.Errorf("%w: phone is required", ErrInvalidRequest)
	case strings.TrimSpace(req.TemplateID) == "":
		return model.ReminderJob{}, fmt.Errorf("%w: templateId is required", ErrInvalidRequest)
	case req.SendAt.IsZero():
		return model.ReminderJob{}, fmt.Errorf("%w: sendAt is required", ErrInvalidRequest)
	}

	now := s.deps.Now().UTC()
	if !s.lateFire && !req.SendAt.After(now) {
		return model.ReminderJob{}, fmt.Errorf("%w: sendAt is in the past", ErrInvalidRequest)
	}

	vars := req.Variables
	if vars == nil {
		vars = model.Variables{}
	}
	job := model.ReminderJob{
		ID:         util.NewAt(now),
		Recipient:  phone,
		TemplateID: strings.TrimSpace(req.TemplateID),
		Variables:  vars,
		FireAt:     req.SendAt.UTC(),
		Status:     model.JobScheduled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.deps.Store.Put(ctx, job); err != nil {
		return model.ReminderJob{}, err
	}
	if !s.arm(job) {
		// persisted; the next Restore picks it up
		s.deps.Log.Warn("reminder stored but not armed", zap.String("job_id", job.ID))
	}

	metrics.RemindersTotal.WithLabelValues("scheduled").Inc()
	s.deps.Log.Info("reminder scheduled",
		zap.String("job_id", job.ID), zap.Time("fire_at", job.FireAt), zap.String("template_id", job.TemplateID))
	publish(ctx, s.deps, model.JobEvent(util.New(), job, now))
	return job, nil
}

func (s *Service) arm(job model.ReminderJob) bool {
	ok := s.timers.Arm(job.ID, job.FireAt, func(ctx context.Context, _ string) {
		s.dispatcher.Fire(ctx, job)
		metrics.TimersArmed.Set(float64(s.timers.Pending()))
	})
	metrics.TimersArmed.Set(float64(s.timers.Pending()))
	return ok
}

// Cancel moves a scheduled job to cancelled and disarms it. The store's
// terminal guard decides a race with a concurrent fire.
func (s *Service) Cancel(ctx context.Context, id string) (model.ReminderJob, error) {
	job, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return model.ReminderJob{}, err
	}
	if job.Status.Terminal() {
		return job, ErrAlreadyFinal
	}

	u := model.StatusUpdate{Status: model.JobCancelled, At: s.deps.Now().UTC()}
	applied, err := s.deps.Store.UpdateStatus(ctx, id, u)
	if err != nil {
		return model.ReminderJob{}, err
	}
	if !applied {
		current, gerr := s.deps.Store.Get(ctx, id)
		if gerr != nil {
			return model.ReminderJob{}, gerr
		}
		return current, ErrAlreadyFinal
	}

	s.timers.Cancel(id)
	metrics.TimersArmed.Set(float64(s.timers.Pending()))
	metrics.RemindersTotal.WithLabelValues("cancelled").Inc()

	job.Apply(u)
	s.deps.Log.Info("reminder cancelled", zap.String("job_id", id))
	publish(ctx, s.deps, model.JobEvent(util.New(), job, u.At))
	return job, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.ReminderJob, error) {
	return s.deps.Store.Get(ctx, id)
}

// List returns stored jobs, optionally filtered by status.
func (s *Service) List(ctx context.Context, status model.JobStatus) ([]model.ReminderJob, error) {
	jobs, err := s.deps.Store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return jobs, nil
	}
	out := jobs[:0]
	for _, j := range jobs {
		if j.Status == status {
			out = append(out, j)
		}
	}
	return out, nil
}

// RestoreReport summarizes a Restore run.
type RestoreReport struct {
	Total   int // jobs in the store
	Armed   int // scheduled jobs re-armed, overdue ones included
	Dropped int // overdue jobs closed as failed because late firing is off
}

// Restore re-arms every scheduled job in the store. It is meant to run once
// at startup, before the HTTP listener accepts bookings.
func (s *Service) Restore(ctx context.Context) (RestoreReport, error) {
	jobs, err := s.deps.Store.ListAll(ctx)
	if err != nil {
		return RestoreReport{}, fmt.Errorf("list jobs: %w", err)
	}

	rep := RestoreReport{Total: len(jobs)}
	now := s.deps.Now()
	for _, job := range jobs {
		if job.Status != model.JobScheduled {
			continue
		}
		if s.arm(job) {
			rep.Armed++
			if !job.FireAt.After(now) {
				s.deps.Log.Info("overdue reminder fires now", zap.String("job_id", job.ID), zap.Time("fire_at", job.FireAt))
			}
			continue
		}

		rep.Dropped++
		u := model.StatusUpdate{Status: model.JobFailed, At: now.UTC(), Error: "missed fire time while offline"}
		if _, err := s.deps.Store.UpdateStatus(ctx, job.ID, u); err != nil {
			s.deps.Log.Error("closing overdue reminder failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		metrics.RemindersTotal.WithLabelValues("dropped").Inc()
	}

	metrics.RemindersTotal.WithLabelValues("restored").Add(float64(rep.Armed))
	s.deps.Log.Info("reminders restored",
		zap.Int("total", rep.Total), zap.Int("armed", rep.Armed), zap.Int("dropped", rep.Dropped))
	return rep, nil
}
