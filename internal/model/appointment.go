package model

import "time"

type AppointmentStatus string

const (
	AppointmentPending     AppointmentStatus = "pending"
	AppointmentConfirmed   AppointmentStatus = "confirmed"
	AppointmentRescheduled AppointmentStatus = "rescheduled"
	AppointmentCancelled   AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) String() string {
	return string(s)
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentConfirmed, AppointmentRescheduled, AppointmentCancelled:
		return true
	}
	return false
}

// Appointment is a booked clinic visit. Date is YYYY-MM-DD, Time is HH:MM.
type Appointment struct {
	ID            string            `json:"id"                      db:"id"`
	Name          string            `json:"name"                    db:"name"`
	Phone         string            `json:"phoneNumber"             db:"phone"`
	Service       string            `json:"service"                 db:"service"`
	Date          string            `json:"date"                    db:"date"`
	Time          string            `json:"time"                    db:"time"`
	Status        AppointmentStatus `json:"status"                  db:"status"`
	CreatedAt     time.Time         `json:"createdAt"               db:"created_at"`
	UpdatedAt     time.Time         `json:"updatedAt"               db:"updated_at"`
	ConfirmedAt   *time.Time        `json:"confirmedAt,omitempty"   db:"confirmed_at"`
	RescheduledAt *time.Time        `json:"rescheduledAt,omitempty" db:"rescheduled_at"`
	CancelledAt   *time.Time        `json:"cancelledAt,omitempty"   db:"cancelled_at"`
}

// Transition sets status and its timestamp.
func (a *Appointment) Transition(to AppointmentStatus, at time.Time) {
	a.Status = to
	a.UpdatedAt = at
	switch to {
	case AppointmentConfirmed:
		a.ConfirmedAt = &at
	case AppointmentRescheduled:
		a.RescheduledAt = &at
	case AppointmentCancelled:
		a.CancelledAt = &at
	}
}

// NewerThan orders appointments by booking time, then id.
func (a Appointment) NewerThan(b Appointment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
