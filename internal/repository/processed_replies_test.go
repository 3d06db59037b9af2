package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisProcessedReplies(t *testing.T) {
	mr, rdb := newTestRedis(t)
	p := NewRedisProcessedReplies(rdb, time.Hour)
	ctx := context.Background()

	first, err := p.MarkProcessed(ctx, "SM1")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = p.MarkProcessed(ctx, "SM1")
	require.NoError(t, err)
	assert.False(t, first)

	assert.Equal(t, time.Hour, mr.TTL("processed:reply/SM1"))

	mr.FastForward(2 * time.Hour)
	first, err = p.MarkProcessed(ctx, "SM1")
	require.NoError(t, err)
	assert.True(t, first)
}
