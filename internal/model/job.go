package model

import "time"

type JobStatus string

const (
	JobScheduled JobStatus = "scheduled"
	JobDelivered JobStatus = "delivered"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

func (s JobStatus) String() string {
	return string(s)
}

func (s JobStatus) Valid() bool {
	return s == JobScheduled || s == JobDelivered || s == JobFailed || s == JobCancelled
}

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobDelivered || s == JobFailed || s == JobCancelled
}

// ReminderJob is one outbound templated message due at FireAt.
type ReminderJob struct {
	ID          string     `json:"id"                    db:"id"`
	Recipient   string     `json:"recipient"             db:"recipient"`
	TemplateID  string     `json:"templateId"            db:"template_id"`
	Variables   Variables  `json:"variables"             db:"variables"`
	FireAt      time.Time  `json:"fireAt"                db:"fire_at"`
	Status      JobStatus  `json:"status"                db:"status"`
	CreatedAt   time.Time  `json:"createdAt"             db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt"             db:"updated_at"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty" db:"delivered_at"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty" db:"cancelled_at"`
	MessageSID  string     `json:"sid,omitempty"         db:"sid"`
	Error       string     `json:"error,omitempty"       db:"error"`
}

// StatusUpdate is the partial merge applied on a terminal transition.
type StatusUpdate struct {
	Status     JobStatus
	At         time.Time // becomes deliveredAt / cancelledAt
	MessageSID string
	Error      string
}

// Apply merges u into j. The caller is responsible for the terminal guard.
func (j *ReminderJob) Apply(u StatusUpdate) {
	at := u.At
	j.Status = u.Status
	j.UpdatedAt = at
	switch u.Status {
	case JobDelivered:
		j.DeliveredAt = &at
		j.MessageSID = u.MessageSID
	case JobCancelled:
		j.CancelledAt = &at
	case JobFailed:
		j.Error = u.Error
	}
}
