package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const processedReplyPrefix = "processed:reply/"

// ProcessedReplies remembers inbound provider message ids so webhook replays
// are handled once.
type ProcessedReplies interface {
	// MarkProcessed records id and reports whether this is its first sighting.
	MarkProcessed(ctx context.Context, id string) (bool, error)
}

type RedisProcessedReplies struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisProcessedReplies(rdb redis.UniversalClient, ttl time.Duration) *RedisProcessedReplies {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisProcessedReplies{rdb: rdb, ttl: ttl}
}

func (r *RedisProcessedReplies) MarkProcessed(ctx context.Context, id string) (bool, error) {
	return r.rdb.SetNX(ctx, processedReplyPrefix+id, time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
}
