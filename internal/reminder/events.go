package reminder

import (
	"context"

	"github.com/jmehdipour/clinic-notify/internal/model"
)

// EventPublisher receives lifecycle events; the Kafka producer implements it.
type EventPublisher interface {
	Publish(ctx context.Context, e model.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, model.Event) error { return nil }

// NopPublisher drops every event. Used when no broker is configured.
var NopPublisher EventPublisher = nopPublisher{}
