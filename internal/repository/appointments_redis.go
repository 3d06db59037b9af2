package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	appointmentKeyPrefix = "appointments/"
	phoneIndexPrefix     = "index:appointments:phone/"
)

// RedisAppointmentStore keeps appointments under appointments/{id} with a
// per-phone sorted set scored by booking time.
type RedisAppointmentStore struct {
	rdb redis.UniversalClient
}

func NewRedisAppointmentStore(rdb redis.UniversalClient) *RedisAppointmentStore {
	return &RedisAppointmentStore{rdb: rdb}
}

func appointmentKey(id string) string { return appointmentKeyPrefix + id }

func phoneIndexKey(phone string) string { return phoneIndexPrefix + phone }

// Put writes a and moves its phone index entry when the phone changed.
func (s *RedisAppointmentStore) Put(ctx context.Context, a model.Appointment) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}

	key := appointmentKey(a.ID)
	for range maxTxRetries {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			prev, err := getAppointment(ctx, tx, a.ID)
			if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				if prev.ID != "" && prev.Phone != a.Phone {
					p.ZRem(ctx, phoneIndexKey(prev.Phone), a.ID)
				}
				p.Set(ctx, key, b, 0)
				p.ZAdd(ctx, phoneIndexKey(a.Phone), redis.Z{Score: float64(a.CreatedAt.UnixMilli()), Member: a.ID})
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("put appointment %s: %w", a.ID, err)
		}
		return nil
	}

	return fmt.Errorf("put appointment %s: too much contention", a.ID)
}

func (s *RedisAppointmentStore) Get(ctx context.Context, id string) (model.Appointment, error) {
	return getAppointment(ctx, s.rdb, id)
}

func getAppointment(ctx context.Context, c redis.Cmdable, id string) (model.Appointment, error) {
	b, err := c.Get(ctx, appointmentKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Appointment{}, ErrAppointmentNotFound
	}
	if err != nil {
		return model.Appointment{}, err
	}
	var a model.Appointment
	if err := json.Unmarshal(b, &a); err != nil {
		return model.Appointment{}, fmt.Errorf("decode appointment %s: %w", id, err)
	}
	return a, nil
}

// LatestByPhone relies on ZREVRANGE ordering equal scores by member descending,
// which matches the id tie-break used elsewhere.
func (s *RedisAppointmentStore) LatestByPhone(ctx context.Context, phone string) (model.Appointment, error) {
	ids, err := s.rdb.ZRevRange(ctx, phoneIndexKey(phone), 0, 0).Result()
	if err != nil {
		return model.Appointment{}, err
	}
	if len(ids) == 0 {
		return model.Appointment{}, ErrAppointmentNotFound
	}
	return s.Get(ctx, ids[0])
}

func (s *RedisAppointmentStore) UpdateStatus(ctx context.Context, id string, to model.AppointmentStatus, at time.Time) (model.Appointment, error) {
	if !to.Valid() {
		return model.Appointment{}, ErrInvalidTransition
	}

	key := appointmentKey(id)
	for range maxTxRetries {
		var out model.Appointment
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			a, err := getAppointment(ctx, tx, id)
			if err != nil {
				return err
			}
			a.Transition(to, at)
			b, err := json.Marshal(a)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, key, b, 0)
				return nil
			})
			out = a
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return model.Appointment{}, err
		}
		return out, nil
	}

	return model.Appointment{}, fmt.Errorf("update appointment %s: too much contention", id)
}
