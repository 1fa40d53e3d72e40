// Package workflow implements the step executor, idempotency guard and
// wait-for-event correlation that drive the Cockpit provisioning workflows.
package workflow

import (
	"context"

	"github.com/start-berlin/cockpit/pkg/events"
)

// Definition is one named workflow subscribed to one trigger event type.
// Handler bodies must be deterministic and do all I/O through RunStep so
// that replaying a run with memoized steps is safe.
type Definition struct {
	// ID identifies the workflow across runs (e.g. "onboard-new-user").
	ID string

	// Trigger is the event type that starts a run.
	Trigger events.EventType

	// IdempotencyKey derives the dedup key from the triggering event.
	// Nil means every delivery starts a fresh run.
	IdempotencyKey func(event events.Event) string

	// Handler is the workflow body. Its return value becomes the run result.
	Handler func(ctx context.Context, run *Context) (map[string]any, error)
}
