package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error { return nil }

func TestProducerPublishKeysByAggregate(t *testing.T) {
	w := &captureWriter{}
	p := &Producer{w: w}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	e := model.Event{
		ID: "E1", Aggregate: model.AggregateReminder, AggregateID: "01JOB",
		Kind: "delivered", Phone: "501234567", Status: "delivered", SID: "SM1", OccurredAt: at,
	}
	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, w.msgs, 1)

	m := w.msgs[0]
	assert.Equal(t, "01JOB", string(m.Key))
	assert.Equal(t, at, m.Time)

	got, err := DecodeEvent(m)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}
