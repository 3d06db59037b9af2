package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/model"
)

type MemoryAppointmentStore struct {
	mu    sync.Mutex
	appts map[string]model.Appointment
}

func NewMemoryAppointmentStore() *MemoryAppointmentStore {
	return &MemoryAppointmentStore{appts: make(map[string]model.Appointment)}
}

func (s *MemoryAppointmentStore) Put(_ context.Context, a model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appts[a.ID] = a
	return nil
}

func (s *MemoryAppointmentStore) Get(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, ErrAppointmentNotFound
	}
	return a, nil
}

func (s *MemoryAppointmentStore) LatestByPhone(_ context.Context, phone string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		latest model.Appointment
		found  bool
	)
	for _, a := range s.appts {
		if a.Phone != phone {
			continue
		}
		if !found || a.NewerThan(latest) {
			latest, found = a, true
		}
	}
	if !found {
		return model.Appointment{}, ErrAppointmentNotFound
	}
	return latest, nil
}

func (s *MemoryAppointmentStore) UpdateStatus(_ context.Context, id string, to model.AppointmentStatus, at time.Time) (model.Appointment, error) {
	if !to.Valid() {
		return model.Appointment{}, ErrInvalidTransition
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, ErrAppointmentNotFound
	}
	a.Transition(to, at)
	s.appts[id] = a
	return a, nil
}
