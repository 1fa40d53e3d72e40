// Package eventbus provides at-least-once event delivery between the Cockpit
// HTTP boundary and the provisioning workflows.
package eventbus

import (
	"context"

	"github.com/start-berlin/cockpit/pkg/events"
)

type EventPublisher interface {
	Publish(ctx context.Context, key string, event events.Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler processes one delivered event. A non-nil error nacks the
// message and the bus redelivers it, so handlers must be idempotent.
type EventHandler func(ctx context.Context, event events.Event) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
