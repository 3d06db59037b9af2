// Package webhook reconciles inbound WhatsApp replies with booked appointments.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/logger"
	"github.com/jmehdipour/clinic-notify/internal/metrics"
	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/jmehdipour/clinic-notify/internal/reminder"
	"github.com/jmehdipour/clinic-notify/internal/repository"
	"github.com/jmehdipour/clinic-notify/internal/transport"
	"github.com/jmehdipour/clinic-notify/internal/util"
	"go.uber.org/zap"
)

// InboundReply carries the fields of a provider webhook we act on.
type InboundReply struct {
	MessageSID    string
	From          string
	Body          string
	ButtonPayload string
	ButtonText    string
}

type Outcome string

const (
	OutcomeAcknowledged  Outcome = "acknowledged"
	OutcomeConfirmed     Outcome = "confirmed"
	OutcomeRescheduled   Outcome = "rescheduled"
	OutcomeNoAppointment Outcome = "no_appointment"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeInvalid       Outcome = "invalid"
)

// Action is a quick-reply button choice.
type Action int

const (
	ActionNone Action = iota
	ActionConfirm
	ActionReschedule
)

// ParseAction reads a button payload, falling back to the button text.
func ParseAction(payload, text string) Action {
	for _, s := range []string{payload, text} {
		s = strings.ToLower(strings.TrimSpace(s))
		switch {
		case s == "":
			continue
		case strings.Contains(s, "resched"):
			return ActionReschedule
		case strings.Contains(s, "confirm"):
			return ActionConfirm
		}
	}
	return ActionNone
}

type Templates struct {
	Ack         string
	Confirmed   string
	Rescheduled string
}

type Reconciler struct {
	appointments repository.AppointmentStore
	processed    repository.ProcessedReplies
	sender       transport.Sender
	events       reminder.EventPublisher
	templates    Templates
	countryCode  string
	log          *zap.Logger
	now          func() time.Time
}

type Deps struct {
	Appointments repository.AppointmentStore
	Processed    repository.ProcessedReplies // optional
	Sender       transport.Sender
	Events       reminder.EventPublisher // optional
	Templates    Templates
	CountryCode  string
	Log          *zap.Logger
	Now          func() time.Time
}

func NewReconciler(d Deps) *Reconciler {
	r := &Reconciler{
		appointments: d.Appointments,
		processed:    d.Processed,
		sender:       d.Sender,
		events:       d.Events,
		templates:    d.Templates,
		countryCode:  d.CountryCode,
		log:          logger.OrNop(d.Log),
		now:          d.Now,
	}
	if r.events == nil {
		r.events = reminder.NopPublisher
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// HandleInboundReply applies a patient's reply to their most recent appointment.
// A missing appointment is an outcome, not an error.
func (r *Reconciler) HandleInboundReply(ctx context.Context, in InboundReply) (Outcome, error) {
	outcome, err := r.handle(ctx, in)
	metrics.RepliesTotal.WithLabelValues(string(outcome)).Inc()
	return outcome, err
}

func (r *Reconciler) handle(ctx context.Context, in InboundReply) (Outcome, error) {
	phone := util.NormalizePhone(in.From, r.countryCode)
	if phone == "" {
		return OutcomeInvalid, errors.New("reply without sender")
	}
	log := r.log.With(zap.String("phone", phone), zap.String("message_sid", in.MessageSID))

	if r.processed != nil && in.MessageSID != "" {
		first, err := r.processed.MarkProcessed(ctx, in.MessageSID)
		switch {
		case err != nil:
			log.Warn("reply dedup unavailable, processing anyway", zap.Error(err))
		case !first:
			log.Info("duplicate reply ignored")
			return OutcomeDuplicate, nil
		}
	}

	action := ParseAction(in.ButtonPayload, in.ButtonText)
	if action == ActionNone {
		if err := r.send(ctx, phone, r.templates.Ack, nil); err != nil {
			return OutcomeAcknowledged, fmt.Errorf("send acknowledgement: %w", err)
		}
		r.publish(ctx, model.AggregateReply, in.MessageSID, string(OutcomeAcknowledged), phone, r.templates.Ack)
		return OutcomeAcknowledged, nil
	}

	appt, err := r.appointments.LatestByPhone(ctx, phone)
	if errors.Is(err, repository.ErrAppointmentNotFound) {
		log.Info("reply from phone without appointment")
		return OutcomeNoAppointment, nil
	}
	if err != nil {
		return OutcomeInvalid, fmt.Errorf("lookup appointment: %w", err)
	}

	to, template, outcome := model.AppointmentConfirmed, r.templates.Confirmed, OutcomeConfirmed
	if action == ActionReschedule {
		to, template, outcome = model.AppointmentRescheduled, r.templates.Rescheduled, OutcomeRescheduled
	}

	updated, err := r.appointments.UpdateStatus(ctx, appt.ID, to, r.now().UTC())
	if err != nil {
		return outcome, fmt.Errorf("update appointment %s: %w", appt.ID, err)
	}
	appt = updated
	log.Info("appointment updated from reply", zap.String("appointment_id", appt.ID), zap.String("status", to.String()))
	r.publish(ctx, model.AggregateAppointment, appt.ID, to.String(), phone, template)

	vars := map[string]string{"1": appt.Date, "2": appt.Time}
	if err := r.send(ctx, phone, template, vars); err != nil {
		return outcome, fmt.Errorf("send %s confirmation: %w", to, err)
	}
	return outcome, nil
}

func (r *Reconciler) send(ctx context.Context, phone, template string, vars map[string]string) error {
	if template == "" {
		r.log.Debug("no template configured, reply not sent", zap.String("phone", phone))
		return nil
	}
	_, err := r.sender.Send(ctx, transport.Message{To: phone, TemplateID: template, Variables: vars})
	return err
}

func (r *Reconciler) publish(ctx context.Context, aggregate, id, kind, phone, template string) {
	e := model.Event{
		ID:          util.New(),
		Aggregate:   aggregate,
		AggregateID: id,
		Kind:        kind,
		Phone:       phone,
		TemplateID:  template,
		Status:      kind,
		OccurredAt:  r.now().UTC(),
	}
	if err := r.events.Publish(ctx, e); err != nil {
		r.log.Warn("publish event failed", zap.String("kind", kind), zap.Error(err))
	}
}
