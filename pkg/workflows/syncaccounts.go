package workflows

import (
	"context"
	"fmt"

	"github.com/start-berlin/cockpit/pkg/events"
	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/persistence"
	"github.com/start-berlin/cockpit/pkg/workflow"
)

// SyncUserAccounts verifies a single member's directory record after an
// update. The check is read-only: lifecycle transitions happen in the
// workflows that observe them, never from a bare update event. A reference
// to a user the directory no longer knows cannot heal itself, so it fails
// the run without retries.
func SyncUserAccounts(services *Services) *workflow.Definition {
	return &workflow.Definition{
		ID:      "sync-user-accounts",
		Trigger: events.UserUpdatedEvent,
		IdempotencyKey: func(event events.Event) string {
			if updated, ok := event.(*events.UserUpdated); ok {
				return updated.UserID
			}

			return ""
		},
		Handler: func(ctx context.Context, run *workflow.Context) (map[string]any, error) {
			updated, ok := run.Event().(*events.UserUpdated)
			if !ok {
				return nil, workflow.NonRetriable(fmt.Errorf("unexpected event %T", run.Event()))
			}

			rawUser, err := run.RunStep(ctx, "load-directory-user", func(ctx context.Context) (any, error) {
				user, err := services.Persistence.UserRepository().FindByID(ctx, updated.UserID)
				if persistence.IsUserNotFound(err) {
					return nil, workflow.NonRetriable(fmt.Errorf("no directory user %s: %w", updated.UserID, err))
				}
				if err != nil {
					return nil, err
				}

				return user, nil
			})
			if err != nil {
				return nil, err
			}

			var user models.User
			if err := workflow.DecodeResult(rawUser, &user); err != nil {
				return nil, workflow.NonRetriable(err)
			}

			return map[string]any{
				"userId": user.ID,
				"email":  user.Email,
				"status": string(user.Status),
			}, nil
		},
	}
}
