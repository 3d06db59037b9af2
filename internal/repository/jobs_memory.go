package repository

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/jmehdipour/clinic-notify/internal/model"
)

// MemoryJobStore is a process-local JobStore for development and tests.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]model.ReminderJob
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]model.ReminderJob)}
}

func (s *MemoryJobStore) Put(_ context.Context, job model.ReminderJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (model.ReminderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return model.ReminderJob{}, ErrJobNotFound
	}
	return cloneJob(j), nil
}

func (s *MemoryJobStore) UpdateStatus(_ context.Context, id string, u model.StatusUpdate) (bool, error) {
	if err := checkTransition(u); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false, ErrJobNotFound
	}
	if j.Status.Terminal() {
		return false, nil
	}
	j.Apply(u)
	s.jobs[id] = j
	return true, nil
}

func (s *MemoryJobStore) ListAll(_ context.Context) ([]model.ReminderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ReminderJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, cloneJob(j))
	}
	sortJobs(out)
	return out, nil
}

func cloneJob(j model.ReminderJob) model.ReminderJob {
	if j.Variables != nil {
		vars := make(model.Variables, len(j.Variables))
		for k, v := range j.Variables {
			vars[k] = v
		}
		j.Variables = vars
	}
	return j
}

// sortJobs orders by id, which for ULIDs is creation order.
func sortJobs(jobs []model.ReminderJob) {
	slices.SortFunc(jobs, func(a, b model.ReminderJob) int { return strings.Compare(a.ID, b.ID) })
}
