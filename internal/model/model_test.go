package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobScheduled.Terminal())
	for _, s := range []JobStatus{JobDelivered, JobFailed, JobCancelled} {
		assert.True(t, s.Terminal(), s)
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, JobStatus("sent").Valid())
}

func TestReminderJobApply(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	j := ReminderJob{Status: JobScheduled}
	j.Apply(StatusUpdate{Status: JobDelivered, At: at, MessageSID: "SM1"})
	require.NotNil(t, j.DeliveredAt)
	assert.Equal(t, at, *j.DeliveredAt)
	assert.Equal(t, "SM1", j.MessageSID)
	assert.Empty(t, j.Error)

	j = ReminderJob{Status: JobScheduled}
	j.Apply(StatusUpdate{Status: JobFailed, At: at, Error: "boom"})
	assert.Equal(t, JobFailed, j.Status)
	assert.Equal(t, "boom", j.Error)
	assert.Nil(t, j.DeliveredAt)
}

func TestVariablesAcceptScalars(t *testing.T) {
	var v Variables
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Sara","1":14,"ok":true,"x":null}`), &v))
	assert.Equal(t, Variables{"name": "Sara", "1": "14", "ok": "true", "x": ""}, v)

	require.Error(t, json.Unmarshal([]byte(`{"a":{"b":1}}`), &v))
}

func TestVariablesSQLRoundTrip(t *testing.T) {
	val, err := Variables{"1": "a"}.Value()
	require.NoError(t, err)

	var v Variables
	require.NoError(t, v.Scan([]byte(val.(string))))
	assert.Equal(t, Variables{"1": "a"}, v)

	require.NoError(t, v.Scan(nil))
	assert.Empty(t, v)
}

func TestAppointmentNewerThan(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Appointment{ID: "a", CreatedAt: t0}
	b := Appointment{ID: "b", CreatedAt: t0.Add(time.Minute)}
	assert.True(t, b.NewerThan(a))
	assert.False(t, a.NewerThan(b))

	c := Appointment{ID: "c", CreatedAt: t0}
	assert.True(t, c.NewerThan(a))
}

func TestAppointmentTransition(t *testing.T) {
	at := time.Now()
	a := Appointment{Status: AppointmentPending}
	a.Transition(AppointmentRescheduled, at)
	assert.Equal(t, AppointmentRescheduled, a.Status)
	require.NotNil(t, a.RescheduledAt)
	assert.Nil(t, a.ConfirmedAt)
}
