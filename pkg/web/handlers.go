// Package web provides the HTTP boundary of Cockpit: event intake, Slack
// webhook receipt, approval links and run inspection.
package web

import (
	"encoding/json"
	"html"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/start-berlin/cockpit/pkg/eventbus"
	"github.com/start-berlin/cockpit/pkg/events"
	"github.com/start-berlin/cockpit/pkg/persistence"
	"github.com/start-berlin/cockpit/pkg/token"
)

type APIHandlers struct {
	logger             *slog.Logger
	persistence        persistence.Persistence
	publisher          eventbus.EventPublisher
	tokens             *token.Signer
	slackSigningSecret string
}

func NewAPIHandlers(
	logger *slog.Logger,
	persistence persistence.Persistence,
	publisher eventbus.EventPublisher,
	tokens *token.Signer,
	slackSigningSecret string,
) *APIHandlers {
	return &APIHandlers{
		logger:             logger,
		persistence:        persistence,
		publisher:          publisher,
		tokens:             tokens,
		slackSigningSecret: slackSigningSecret,
	}
}

// PostEventRequest is the generic event intake envelope.
type PostEventRequest struct {
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
}

// PostEvent validates and publishes one event onto the bus. The payload is
// checked against the event's schema before it is accepted, so malformed
// events are rejected at the boundary instead of poisoning a workflow run.
func (h *APIHandlers) PostEvent(c fiber.Ctx) error {
	var req PostEventRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "invalid JSON body: "+err.Error())
	}

	if req.Name == "" {
		return badRequest(c, "event name is required")
	}

	eventType := events.EventType(req.Name)
	if !events.Known(eventType) {
		return notFound(c, "unknown event name: "+req.Name)
	}

	if err := events.ValidatePayload(eventType, req.Data); err != nil {
		return badRequest(c, err.Error())
	}

	raw, err := json.Marshal(req.Data)
	if err != nil {
		return badRequest(c, err.Error())
	}

	event, err := events.Decode(eventType, raw)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := events.ValidateEvent(event); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.publisher.Publish(c.Context(), event.GetID(), event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":   event.GetID(),
		"type": event.GetType(),
	})
}

// SlackEvents receives the Slack Events API webhook. Payloads are
// authenticated with the app's signing secret; only team_join is translated
// into a bus event, everything else is acknowledged and dropped.
func (h *APIHandlers) SlackEvents(c fiber.Ctx) error {
	body := c.Body()

	if err := h.verifySlackSignature(c, body); err != nil {
		return unauthorized(c, "invalid slack signature")
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return badRequest(c, "unparseable slack event")
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			return badRequest(c, "unparseable challenge")
		}

		return c.SendString(challenge.Challenge)

	case slackevents.CallbackEvent:
		if joined, ok := event.InnerEvent.Data.(*slackevents.TeamJoinEvent); ok {
			err := h.publisher.Publish(c.Context(), joined.User.ID, &events.SlackUserJoined{
				BaseEvent:   events.NewBaseEvent(events.SlackUserJoinedEvent),
				SlackUserID: joined.User.ID,
			})
			if err != nil {
				return internalError(c, err)
			}
		}

		return c.SendStatus(fiber.StatusOK)

	default:
		return c.SendStatus(fiber.StatusOK)
	}
}

func (h *APIHandlers) verifySlackSignature(c fiber.Ctx, body []byte) error {
	header := http.Header{}
	header.Set("X-Slack-Signature", c.Get("X-Slack-Signature"))
	header.Set("X-Slack-Request-Timestamp", c.Get("X-Slack-Request-Timestamp"))

	verifier, err := slackapi.NewSecretsVerifier(header, h.slackSigningSecret)
	if err != nil {
		return err
	}

	if _, err := verifier.Write(body); err != nil {
		return err
	}

	return verifier.Ensure()
}

// Approve consumes one signed approval link: it checks the token against the
// workflow run and email it was issued for, then publishes the approval event
// that resumes the suspended run.
func (h *APIHandlers) Approve(c fiber.Ctx) error {
	workflowID := c.Query("workflowId")
	email := c.Query("email")
	signed := c.Query("token")

	if workflowID == "" || email == "" || signed == "" {
		return badRequest(c, "workflowId, email and token are required")
	}

	if err := h.tokens.Verify(signed, workflowID, email); err != nil {
		return unauthorized(c, "approval token does not match this workflow")
	}

	err := h.publisher.Publish(c.Context(), workflowID, &events.WorkflowApproval{
		BaseEvent:  events.NewBaseEvent(events.WorkflowApprovalEvent),
		Email:      email,
		WorkflowID: workflowID,
		ApprovedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return internalError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)

	return c.SendString(`<html><body style="font-family: sans-serif; text-align: center; padding-top: 4rem;">
<h1>Workflow approved</h1>
<p>Workflow <code>` + html.EscapeString(workflowID) + `</code> will now continue. You can close this tab.</p>
</body></html>`)
}

// GetRuns lists workflow runs, optionally filtered by workflow id.
func (h *APIHandlers) GetRuns(c fiber.Ctx) error {
	repo := h.persistence.RunRepository()

	if workflowID := c.Query("workflow"); workflowID != "" {
		runs, err := repo.RunsByWorkflow(c.Context(), workflowID)
		if err != nil {
			return handlePersistenceError(c, err)
		}

		return c.JSON(redactRuns(runs))
	}

	runs, err := repo.Runs(c.Context())
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(redactRuns(runs))
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	run, err := h.persistence.RunRepository().RunByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(redactRun(run))
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		h.logger.ErrorContext(c.Context(), "Health check failed", "error", err)

		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy"})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}
