package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/jmehdipour/clinic-notify/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	script := `
-- jobs
DROP TABLE IF EXISTS a;

CREATE TABLE a (
    id INT
);
`
	assert.Equal(t, []string{
		"DROP TABLE IF EXISTS a",
		"CREATE TABLE a (\n    id INT\n)",
	}, splitStatements(script))
}

func TestSeedAppointments(t *testing.T) {
	store := repository.NewMemoryAppointmentStore()
	now := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)

	n, err := seedAppointments(context.Background(), store, "972", now)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	a, err := store.LatestByPhone(context.Background(), "501112233")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09", a.Date)
	assert.Equal(t, "09:30", a.Time)
	assert.Equal(t, model.AppointmentPending, a.Status)

	_, err = store.LatestByPhone(context.Background(), "531234567")
	require.NoError(t, err)
}
