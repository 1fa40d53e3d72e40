package workflows

import (
	"context"
	"fmt"

	"github.com/start-berlin/cockpit/pkg/events"
	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/persistence"
	"github.com/start-berlin/cockpit/pkg/providers"
	"github.com/start-berlin/cockpit/pkg/workflow"
)

// SlackUserJoined links a workspace member who joined Slack back to their
// directory record and activates them: joining Slack is the signal that
// onboarding is done. A joiner whose Slack email is unknown to the directory
// is a permanent mismatch, not a transient fault, so the run fails without
// retries.
func SlackUserJoined(services *Services) *workflow.Definition {
	return &workflow.Definition{
		ID:      "slack-user-joined",
		Trigger: events.SlackUserJoinedEvent,
		IdempotencyKey: func(event events.Event) string {
			if joined, ok := event.(*events.SlackUserJoined); ok {
				return joined.SlackUserID
			}

			return ""
		},
		Handler: func(ctx context.Context, run *workflow.Context) (map[string]any, error) {
			joined, ok := run.Event().(*events.SlackUserJoined)
			if !ok {
				return nil, workflow.NonRetriable(fmt.Errorf("unexpected event %T", run.Event()))
			}

			rawEmail, err := run.RunStep(ctx, "fetch-slack-profile", func(ctx context.Context) (any, error) {
				profile, err := services.Messenger.GetUserProfile(ctx, joined.SlackUserID)
				if err != nil {
					return nil, err
				}

				return profile.Email, nil
			})
			if err != nil {
				return nil, err
			}

			email, _ := rawEmail.(string)

			rawUserID, err := run.RunStep(ctx, "find-directory-user", func(ctx context.Context) (any, error) {
				user, err := services.Persistence.UserRepository().FindByEmail(ctx, email)
				if persistence.IsUserNotFound(err) {
					return nil, workflow.NonRetriable(fmt.Errorf("no directory user for %s: %w", email, err))
				}
				if err != nil {
					return nil, err
				}

				return user.ID, nil
			})
			if err != nil {
				return nil, err
			}

			userID, _ := rawUserID.(string)

			_, err = run.RunStep(ctx, "activate-member", func(ctx context.Context) (any, error) {
				user, err := services.Persistence.UserRepository().FindByEmail(ctx, email)
				if err != nil {
					return nil, err
				}

				if user.Status != models.UserStatusOnboarding {
					return string(user.Status), nil
				}

				user.Status = models.UserStatusActive
				if _, err := services.Persistence.UserRepository().UpsertByEmail(ctx, user); err != nil {
					return nil, err
				}

				return string(models.UserStatusActive), nil
			})
			if err != nil {
				return nil, err
			}

			_, err = run.RunStep(ctx, "emit-user-updated", func(ctx context.Context) (any, error) {
				return nil, services.Publisher.Publish(ctx, userID, &events.UserUpdated{
					BaseEvent: events.NewBaseEvent(events.UserUpdatedEvent),
					UserID:    userID,
				})
			})
			if err != nil {
				return nil, err
			}

			_, err = run.RunStep(ctx, "send-welcome-message", func(ctx context.Context) (any, error) {
				return nil, services.Messenger.PostMessage(ctx, joined.SlackUserID, providers.Message{
					Sections: []string{
						":wave: *Welcome to the START Berlin Slack!*",
						"Your Slack account is now linked to your Cockpit profile. Say hi in #general and check the pinned onboarding guide.",
					},
					Context: "Sent automatically by Cockpit",
				})
			})
			if err != nil {
				return nil, err
			}

			return map[string]any{
				"userId": userID,
				"email":  email,
			}, nil
		},
	}
}
