package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix = "scheduledJobs/"
	jobIndexKey  = "index:scheduledJobs"
	maxTxRetries = 10
)

// RedisJobStore keeps each job as a JSON document under scheduledJobs/{id}.
type RedisJobStore struct {
	rdb redis.UniversalClient
}

func NewRedisJobStore(rdb redis.UniversalClient) *RedisJobStore {
	return &RedisJobStore{rdb: rdb}
}

func jobKey(id string) string { return jobKeyPrefix + id }

func (s *RedisJobStore) Put(ctx context.Context, job model.ReminderJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, jobKey(job.ID), b, 0)
		p.SAdd(ctx, jobIndexKey, job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (model.ReminderJob, error) {
	return getJob(ctx, s.rdb, id)
}

func getJob(ctx context.Context, c redis.Cmdable, id string) (model.ReminderJob, error) {
	b, err := c.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.ReminderJob{}, ErrJobNotFound
	}
	if err != nil {
		return model.ReminderJob{}, err
	}
	var j model.ReminderJob
	if err := json.Unmarshal(b, &j); err != nil {
		return model.ReminderJob{}, fmt.Errorf("decode job %s: %w", id, err)
	}
	return j, nil
}

// UpdateStatus runs an optimistic WATCH/MULTI transaction; a concurrent writer
// on the same key makes it re-read and re-check the terminal guard.
func (s *RedisJobStore) UpdateStatus(ctx context.Context, id string, u model.StatusUpdate) (bool, error) {
	if err := checkTransition(u); err != nil {
		return false, err
	}

	key := jobKey(id)
	for range maxTxRetries {
		applied := false
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			j, err := getJob(ctx, tx, id)
			if err != nil {
				return err
			}
			if j.Status.Terminal() {
				return nil
			}
			j.Apply(u)
			b, err := json.Marshal(j)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, key, b, 0)
				return nil
			})
			if err == nil {
				applied = true
			}
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, err
		}
		return applied, nil
	}

	return false, fmt.Errorf("update job %s: too much contention", id)
}

func (s *RedisJobStore) ListAll(ctx context.Context) ([]model.ReminderJob, error) {
	ids, err := s.rdb.SMembers(ctx, jobIndexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]model.ReminderJob, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// index entry without a document
			continue
		}
		var j model.ReminderJob
		if err := json.Unmarshal([]byte(raw), &j); err != nil {
			return nil, fmt.Errorf("decode job %s: %w", ids[i], err)
		}
		jobs = append(jobs, j)
	}
	sortJobs(jobs)
	return jobs, nil
}
