package workflows

import (
	"context"
	"fmt"

	"github.com/start-berlin/cockpit/pkg/events"
	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/providers"
	"github.com/start-berlin/cockpit/pkg/workflow"
)

// CreateGroup records a new directory group and provisions its optional
// integrations. The Slack channel and the workspace mailing group are
// independent of each other: a failure in one is surfaced in the run result
// without blocking the other or failing the run.
func CreateGroup(services *Services) *workflow.Definition {
	return &workflow.Definition{
		ID:      "create-group",
		Trigger: events.GroupCreatedEvent,
		IdempotencyKey: func(event events.Event) string {
			if created, ok := event.(*events.GroupCreated); ok {
				return created.GroupID
			}

			return ""
		},
		Handler: func(ctx context.Context, run *workflow.Context) (map[string]any, error) {
			created, ok := run.Event().(*events.GroupCreated)
			if !ok {
				return nil, workflow.NonRetriable(fmt.Errorf("unexpected event %T", run.Event()))
			}

			_, err := run.RunStep(ctx, "insert-directory-group", func(ctx context.Context) (any, error) {
				return nil, services.Persistence.GroupRepository().InsertIfAbsent(ctx, &models.Group{
					ID:   created.GroupID,
					Name: created.Name,
					Slug: created.Slug,
				})
			})
			if err != nil {
				return nil, err
			}

			result := map[string]any{"groupId": created.GroupID}

			if created.Integrations.Slack {
				channelID, err := run.RunStep(ctx, "create-slack-channel", func(ctx context.Context) (any, error) {
					return services.Messenger.CreatePrivateChannel(ctx, created.Slug)
				})
				if err != nil {
					run.Logger().Warn("Slack channel creation failed", "group", created.Slug, "error", err)
					result["slackError"] = err.Error()
				} else {
					result["slackChannelId"] = channelID
				}
			}

			if created.Integrations.Email {
				groupEmail := fmt.Sprintf("%s@%s", created.Slug, services.Config.Domain)

				_, err := run.RunStep(ctx, "create-workspace-group", func(ctx context.Context) (any, error) {
					err := services.Identity.CreateGroup(ctx, providers.NewGroup{
						Email:       groupEmail,
						Name:        created.Name,
						Description: fmt.Sprintf("Mailing group for %s", created.Name),
					})
					if providers.IsAlreadyExists(err) {
						return nil, nil
					}

					return nil, err
				})
				if err != nil {
					run.Logger().Warn("workspace group creation failed", "group", created.Slug, "error", err)
					result["emailError"] = err.Error()
				} else {
					result["groupEmail"] = groupEmail
				}
			}

			return result, nil
		},
	}
}
