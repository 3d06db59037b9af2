package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(id string, fireAt time.Time) model.ReminderJob {
	return model.ReminderJob{
		ID:         id,
		Recipient:  "501234567",
		TemplateID: "HX123",
		Variables:  model.Variables{"name": "Sara"},
		FireAt:     fireAt.UTC().Truncate(time.Millisecond),
		Status:     model.JobScheduled,
		CreatedAt:  fireAt.Add(-time.Hour).UTC().Truncate(time.Millisecond),
	}
}

// runJobStoreContract exercises behaviour every JobStore backend must share.
func runJobStoreContract(t *testing.T, newStore func(t *testing.T) JobStore) {
	ctx := context.Background()
	now := time.Now()

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		job := newJob("01A", now)
		require.NoError(t, s.Put(ctx, job))

		got, err := s.Get(ctx, "01A")
		require.NoError(t, err)
		assert.Equal(t, job.Recipient, got.Recipient)
		assert.Equal(t, job.Variables, got.Variables)
		assert.True(t, job.FireAt.Equal(got.FireAt))
		assert.Equal(t, model.JobScheduled, got.Status)
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrJobNotFound)

		_, err = s.UpdateStatus(ctx, "nope", model.StatusUpdate{Status: model.JobFailed, At: now})
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("terminal status is final", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, newJob("01B", now)))

		applied, err := s.UpdateStatus(ctx, "01B", model.StatusUpdate{Status: model.JobDelivered, At: now, MessageSID: "SM1"})
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = s.UpdateStatus(ctx, "01B", model.StatusUpdate{Status: model.JobFailed, At: now, Error: "late"})
		require.NoError(t, err)
		assert.False(t, applied)

		got, err := s.Get(ctx, "01B")
		require.NoError(t, err)
		assert.Equal(t, model.JobDelivered, got.Status)
		assert.Equal(t, "SM1", got.MessageSID)
		assert.Empty(t, got.Error)
		require.NotNil(t, got.DeliveredAt)
	})

	t.Run("scheduled is not a target", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, newJob("01C", now)))
		_, err := s.UpdateStatus(ctx, "01C", model.StatusUpdate{Status: model.JobScheduled, At: now})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("concurrent updates apply once", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, newJob("01D", now)))

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			applied int
		)
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				st := model.JobDelivered
				if i%2 == 1 {
					st = model.JobCancelled
				}
				ok, err := s.UpdateStatus(ctx, "01D", model.StatusUpdate{Status: st, At: now})
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					applied++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, applied)
	})

	t.Run("list all", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, newJob("01F", now)))
		require.NoError(t, s.Put(ctx, newJob("01E", now)))
		_, err := s.UpdateStatus(ctx, "01F", model.StatusUpdate{Status: model.JobCancelled, At: now})
		require.NoError(t, err)

		jobs, err := s.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, "01E", jobs[0].ID)
		assert.Equal(t, model.JobCancelled, jobs[1].Status)
	})
}

func TestMemoryJobStore(t *testing.T) {
	runJobStoreContract(t, func(*testing.T) JobStore { return NewMemoryJobStore() })
}

func TestMemoryJobStoreCopiesVariables(t *testing.T) {
	s := NewMemoryJobStore()
	job := newJob("01A", time.Now())
	require.NoError(t, s.Put(context.Background(), job))
	job.Variables["name"] = "changed"

	got, err := s.Get(context.Background(), "01A")
	require.NoError(t, err)
	assert.Equal(t, "Sara", got.Variables["name"])
}
