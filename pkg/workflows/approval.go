package workflows

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/start-berlin/cockpit/pkg/emails"
	"github.com/start-berlin/cockpit/pkg/events"
	"github.com/start-berlin/cockpit/pkg/providers"
	"github.com/start-berlin/cockpit/pkg/workflow"
)

// ApprovalWorkflow exercises the human-in-the-loop path: it registers a
// workflow id, emails a signed approval link and suspends until the matching
// approval event arrives. An hour without approval resolves the run as timed
// out rather than failed.
func ApprovalWorkflow(services *Services) *workflow.Definition {
	return &workflow.Definition{
		ID:      "approval-workflow",
		Trigger: events.WorkflowStartEvent,
		IdempotencyKey: func(event events.Event) string {
			if start, ok := event.(*events.WorkflowStart); ok {
				return start.Email
			}

			return ""
		},
		Handler: func(ctx context.Context, run *workflow.Context) (map[string]any, error) {
			start, ok := run.Event().(*events.WorkflowStart)
			if !ok {
				return nil, workflow.NonRetriable(fmt.Errorf("unexpected event %T", run.Event()))
			}

			rawID, err := run.RunStep(ctx, "register-workflow", func(ctx context.Context) (any, error) {
				return NewWorkflowID(start.Email, time.Now()), nil
			})
			if err != nil {
				return nil, err
			}

			workflowID, _ := rawID.(string)

			_, err = run.RunStep(ctx, "send-approval-email", func(ctx context.Context) (any, error) {
				approvalURL := fmt.Sprintf("%s/approve?workflowId=%s&email=%s&token=%s",
					services.Config.BaseURL,
					url.QueryEscape(workflowID),
					url.QueryEscape(start.Email),
					url.QueryEscape(services.Tokens.Sign(workflowID, start.Email)),
				)

				html, err := emails.WorkflowApproval(start.FirstName, workflowID, approvalURL)
				if err != nil {
					return nil, workflow.NonRetriable(err)
				}

				return nil, services.Mailer.Send(ctx, providers.Email{
					From:    services.Config.FromAddress,
					To:      start.Email,
					Subject: "Approval required",
					HTML:    html,
				})
			})
			if err != nil {
				return nil, err
			}

			approval, err := run.WaitForEvent(ctx, "wait-for-approval", events.WorkflowApprovalEvent,
				"workflowId", func(data map[string]any) bool {
					return data["workflowId"] == workflowID
				}, services.Config.approvalTimeout())
			if err != nil {
				return nil, err
			}

			if approval == nil {
				return map[string]any{
					"status":     "timeout",
					"workflowId": workflowID,
				}, nil
			}

			_, err = run.RunStep(ctx, "send-confirmation-email", func(ctx context.Context) (any, error) {
				html, err := emails.WorkflowConfirmation(start.FirstName, workflowID)
				if err != nil {
					return nil, workflow.NonRetriable(err)
				}

				return nil, services.Mailer.Send(ctx, providers.Email{
					From:    services.Config.FromAddress,
					To:      start.Email,
					Subject: "Workflow approved",
					HTML:    html,
				})
			})
			if err != nil {
				return nil, err
			}

			return map[string]any{
				"status":     "approved",
				"workflowId": workflowID,
				"approvedAt": approval["approvedAt"],
			}, nil
		},
	}
}
