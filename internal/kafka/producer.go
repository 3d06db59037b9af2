package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes notification events keyed by aggregate id, so events of
// one job or appointment stay ordered within a partition.
type Producer struct {
	w messageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           20 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

// EncodeEvent builds the wire message for e.
func EncodeEvent(e model.Event) (kafka.Message, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(e.AggregateID),
		Value: b,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "aggregate", Value: []byte(e.Aggregate)},
			{Key: "kind", Value: []byte(e.Kind)},
		},
	}, nil
}

// DecodeEvent is the inverse of EncodeEvent.
func DecodeEvent(m kafka.Message) (model.Event, error) {
	var e model.Event
	err := json.Unmarshal(m.Value, &e)
	return e, err
}

func (p *Producer) Publish(ctx context.Context, e model.Event) error {
	m, err := EncodeEvent(e)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, m)
}

func (p *Producer) Close() error { return p.w.Close() }
