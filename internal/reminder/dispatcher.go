// Package reminder schedules, fires and restores appointment reminder jobs.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/logger"
	"github.com/jmehdipour/clinic-notify/internal/metrics"
	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/jmehdipour/clinic-notify/internal/repository"
	"github.com/jmehdipour/clinic-notify/internal/transport"
	"github.com/jmehdipour/clinic-notify/internal/util"
	"go.uber.org/zap"
)

const storeWriteTimeout = 10 * time.Second

// Deps are shared by the dispatcher and the scheduling service.
type Deps struct {
	Store  repository.JobStore
	Sender transport.Sender
	Events EventPublisher
	Log    *zap.Logger
	Now    func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Events == nil {
		d.Events = NopPublisher
	}
	d.Log = logger.OrNop(d.Log)
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Dispatcher makes exactly one transport attempt per fired job and records
// the outcome as a terminal status. There are no retries.
type Dispatcher struct {
	deps    Deps
	timeout time.Duration
}

func NewDispatcher(deps Deps, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{deps: deps.withDefaults(), timeout: timeout}
}

// Fire is the timer callback. It re-reads the job so a cancellation or a
// delivery recorded elsewhere suppresses the send.
func (d *Dispatcher) Fire(ctx context.Context, snapshot model.ReminderJob) {
	log := d.deps.Log.With(zap.String("job_id", snapshot.ID))

	job, err := d.deps.Store.Get(ctx, snapshot.ID)
	switch {
	case errors.Is(err, repository.ErrJobNotFound):
		log.Warn("fired job no longer exists")
		return
	case err != nil:
		log.Warn("job re-read failed, dispatching armed copy", zap.Error(err))
		job = snapshot
	case job.Status != model.JobScheduled:
		log.Info("fired job already final, skipping", zap.String("status", job.Status.String()))
		return
	}

	d.Dispatch(ctx, job)
}

// Dispatch sends job and returns it with the status that was recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, job model.ReminderJob) model.ReminderJob {
	log := d.deps.Log.With(zap.String("job_id", job.ID), zap.String("template_id", job.TemplateID))

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	sid, err := d.deps.Sender.Send(sendCtx, transport.Message{
		To:         job.Recipient,
		TemplateID: job.TemplateID,
		Variables:  job.Variables,
	})
	timedOut := errors.Is(sendCtx.Err(), context.DeadlineExceeded)
	cancel()

	if err != nil && !timedOut && ctx.Err() != nil {
		// interrupted by shutdown: stays scheduled so the next Restore re-arms it
		log.Warn("reminder send interrupted, left scheduled", zap.Error(err))
		return job
	}

	u := model.StatusUpdate{At: d.deps.Now().UTC()}
	if err != nil {
		u.Status = model.JobFailed
		u.Error = err.Error()
		if timedOut {
			u.Error = fmt.Sprintf("transport timeout after %s: %v", d.timeout, err)
		}
		log.Warn("reminder send failed", zap.Error(err), zap.Bool("timeout", timedOut))
	} else {
		u.Status = model.JobDelivered
		u.MessageSID = sid
	}

	// record the outcome even if the caller is shutting down
	storeCtx, cancelStore := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer cancelStore()

	applied, uerr := d.deps.Store.UpdateStatus(storeCtx, job.ID, u)
	switch {
	case uerr != nil:
		log.Error("recording reminder outcome failed",
			zap.String("status", u.Status.String()), zap.Error(uerr))
		return job
	case !applied:
		log.Warn("reminder already final, outcome not recorded", zap.String("status", u.Status.String()))
		return job
	}

	job.Apply(u)
	metrics.RemindersTotal.WithLabelValues(u.Status.String()).Inc()
	if u.Status == model.JobDelivered {
		log.Info("reminder delivered", zap.String("sid", sid))
	}
	d.publish(storeCtx, job)
	return job
}

func (d *Dispatcher) publish(ctx context.Context, job model.ReminderJob) {
	publish(ctx, d.deps, model.JobEvent(util.New(), job, d.deps.Now().UTC()))
}

func publish(ctx context.Context, deps Deps, e model.Event) {
	if err := deps.Events.Publish(ctx, e); err != nil {
		deps.Log.Warn("publish event failed",
			zap.String("aggregate_id", e.AggregateID), zap.String("kind", e.Kind), zap.Error(err))
	}
}
