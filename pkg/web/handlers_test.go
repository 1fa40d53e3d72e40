package web_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/start-berlin/cockpit/pkg/events"
	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/persistence/file"
	"github.com/start-berlin/cockpit/pkg/token"
	"github.com/start-berlin/cockpit/pkg/web"
)

const slackSigningSecret = "test-slack-secret"

type capturingPublisher struct {
	mu        sync.Mutex
	published []events.Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.published = append(p.published, event)

	return nil
}

func (p *capturingPublisher) events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]events.Event(nil), p.published...)
}

func setupTestApp(t *testing.T) (*fiber.App, *file.Persistence, *capturingPublisher) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	publisher := &capturingPublisher{}
	handlers := web.NewAPIHandlers(slog.Default(), persistence, publisher,
		token.NewSigner("test-secret"), slackSigningSecret)

	app := fiber.New()
	app.Post("/events", handlers.PostEvent)
	app.Post("/slack/events", handlers.SlackEvents)
	app.Get("/approve", handlers.Approve)
	app.Get("/runs", handlers.GetRuns)
	app.Get("/runs/:id", handlers.GetRun)
	app.Get("/health", handlers.HealthCheck)

	return app, persistence, publisher
}

func TestPostEventPublishesValidEvent(t *testing.T) {
	t.Parallel()

	app, _, publisher := setupTestApp(t)

	body, err := json.Marshal(web.PostEventRequest{
		Name: "user.created",
		Data: map[string]any{
			"firstName":     "Jane",
			"lastName":      "Doe",
			"personalEmail": "jane@example.com",
			"batchNumber":   14,
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	published := publisher.events()
	require.Len(t, published, 1)

	created, ok := published[0].(*events.UserCreated)
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", created.PersonalEmail)
	assert.NotEmpty(t, created.GetID())
}

func TestPostEventRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	app, _, publisher := setupTestApp(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"missing name", `{"data": {}}`},
		{"schema violation", `{"name": "user.created", "data": {"firstName": "Jane"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	assert.Empty(t, publisher.events())
}

func TestPostEventUnknownNameIsNotFound(t *testing.T) {
	t.Parallel()

	app, _, publisher := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/events",
		bytes.NewBufferString(`{"name": "nope.nope", "data": {}}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, publisher.events())
}

func slackSign(t *testing.T, req *http.Request, body []byte) {
	t.Helper()

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(slackSigningSecret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)

	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
}

func TestSlackEventsURLVerification(t *testing.T) {
	t.Parallel()

	app, _, _ := setupTestApp(t)

	body := []byte(`{"type": "url_verification", "challenge": "gauntlet"}`)
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	slackSign(t, req, body)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	answer, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "gauntlet", string(answer))
}

func TestSlackEventsTeamJoinPublishes(t *testing.T) {
	t.Parallel()

	app, _, publisher := setupTestApp(t)

	body := []byte(`{
		"type": "event_callback",
		"event": {"type": "team_join", "user": {"id": "U123"}}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	slackSign(t, req, body)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	published := publisher.events()
	require.Len(t, published, 1)

	joined, ok := published[0].(*events.SlackUserJoined)
	require.True(t, ok)
	assert.Equal(t, "U123", joined.SlackUserID)
}

func TestSlackEventsRejectsBadSignature(t *testing.T) {
	t.Parallel()

	app, _, publisher := setupTestApp(t)

	body := []byte(`{"type": "url_verification", "challenge": "gauntlet"}`)
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, publisher.events())
}

func TestApprovePublishesApprovalEvent(t *testing.T) {
	t.Parallel()

	app, _, publisher := setupTestApp(t)

	signer := token.NewSigner("test-secret")
	signed := signer.Sign("wf_1700000000_ab12cd34", "jane.doe@start-berlin.com")

	target := "/approve?workflowId=wf_1700000000_ab12cd34&email=" +
		url.QueryEscape("jane.doe@start-berlin.com") + "&token=" + url.QueryEscape(signed)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), "Workflow approved")

	published := publisher.events()
	require.Len(t, published, 1)

	approval, ok := published[0].(*events.WorkflowApproval)
	require.True(t, ok)
	assert.Equal(t, "wf_1700000000_ab12cd34", approval.WorkflowID)
	assert.Equal(t, "jane.doe@start-berlin.com", approval.Email)
	assert.NotEmpty(t, approval.ApprovedAt)
}

func TestApproveRejectsMismatchedToken(t *testing.T) {
	t.Parallel()

	app, _, publisher := setupTestApp(t)

	signer := token.NewSigner("test-secret")
	signed := signer.Sign("wf_other_run", "jane.doe@start-berlin.com")

	target := "/approve?workflowId=wf_1700000000_ab12cd34&email=" +
		url.QueryEscape("jane.doe@start-berlin.com") + "&token=" + url.QueryEscape(signed)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, publisher.events())
}

func TestGetRuns(t *testing.T) {
	t.Parallel()

	app, persistence, _ := setupTestApp(t)

	require.NoError(t, persistence.RunRepository().SaveRun(context.Background(), &models.WorkflowRun{
		ID:         "run-1",
		WorkflowID: "onboard-new-user",
		Status:     models.RunStatusCompleted,
	}))
	require.NoError(t, persistence.RunRepository().SaveRun(context.Background(), &models.WorkflowRun{
		ID:         "run-2",
		WorkflowID: "create-group",
		Status:     models.RunStatusRunning,
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var all []models.WorkflowRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.Len(t, all, 2)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/runs?workflow=create-group", nil))
	require.NoError(t, err)

	var filtered []models.WorkflowRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "run-2", filtered[0].ID)
}

func TestGetRunRedactsCredentials(t *testing.T) {
	t.Parallel()

	app, persistence, _ := setupTestApp(t)

	require.NoError(t, persistence.RunRepository().SaveRun(context.Background(), &models.WorkflowRun{
		ID:         "run-creds",
		WorkflowID: "onboard-new-user",
		Status:     models.RunStatusCompleted,
		Steps: []*models.StepRecord{{
			Name:   "generate-credentials",
			Status: models.StepStatusSucceeded,
			Result: map[string]any{
				"companyEmail":    "jane.doe@start-berlin.com",
				"initialPassword": "s3cret-Pass",
			},
		}},
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs/run-creds", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "s3cret-Pass")
	assert.Contains(t, string(body), "[REDACTED]")
	assert.Contains(t, string(body), "jane.doe@start-berlin.com")

	// The stored record keeps the real value for replay.
	stored, err := persistence.RunRepository().RunByID(context.Background(), "run-creds")
	require.NoError(t, err)

	result, ok := stored.Steps[0].Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "s3cret-Pass", result["initialPassword"])

	listResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.NoError(t, err)

	listBody, err := io.ReadAll(listResp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(listBody), "s3cret-Pass")
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	app, _, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs/absent", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	app, _, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
