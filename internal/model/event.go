package model

import "time"

const (
	AggregateReminder    = "reminder"
	AggregateAppointment = "appointment"
	AggregateReply       = "reply"
)

// Event is a notification lifecycle record, published to Kafka and archived in ClickHouse.
type Event struct {
	ID          string    `json:"eventId"              db:"event_id"`
	Aggregate   string    `json:"aggregate"            db:"aggregate"`
	AggregateID string    `json:"aggregateId"          db:"aggregate_id"`
	Kind        string    `json:"kind"                 db:"kind"`
	Phone       string    `json:"phone"                db:"phone"`
	TemplateID  string    `json:"templateId,omitempty" db:"template_id"`
	Status      string    `json:"status"               db:"status"`
	Error       string    `json:"error,omitempty"      db:"error"`
	SID         string    `json:"sid,omitempty"        db:"sid"`
	OccurredAt  time.Time `json:"occurredAt"           db:"occurred_at"`
}

// JobEvent describes the current state of a reminder job.
func JobEvent(id string, j ReminderJob, at time.Time) Event {
	return Event{
		ID:          id,
		Aggregate:   AggregateReminder,
		AggregateID: j.ID,
		Kind:        j.Status.String(),
		Phone:       j.Recipient,
		TemplateID:  j.TemplateID,
		Status:      j.Status.String(),
		Error:       j.Error,
		SID:         j.MessageSID,
		OccurredAt:  at,
	}
}
