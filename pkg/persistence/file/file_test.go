package file

import (
	"context"
	"testing"
	"time"

	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRepositorySaveAndLoad(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	run := &models.WorkflowRun{
		ID:                "run-1",
		WorkflowID:        "onboard-new-user",
		TriggeringEventID: "evt-1",
		IdempotencyKey:    "ada@example.com",
		Status:            models.RunStatusRunning,
		CreatedAt:         time.Now().UTC(),
	}
	run.Step("create-external-user").Status = models.StepStatusSucceeded

	require.NoError(t, p.RunRepository().SaveRun(ctx, run))

	loaded, err := p.RunRepository().RunByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, loaded.Status)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, models.StepStatusSucceeded, loaded.Steps[0].Status)
}

func TestRunRepositoryActiveRun(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	terminal := &models.WorkflowRun{
		ID:             "run-done",
		WorkflowID:     "onboard-new-user",
		IdempotencyKey: "ada@example.com",
		Status:         models.RunStatusCompleted,
	}
	require.NoError(t, p.RunRepository().SaveRun(ctx, terminal))

	// A terminal run does not count as active.
	_, err := p.RunRepository().ActiveRun(ctx, "onboard-new-user", "ada@example.com")
	assert.True(t, persistence.IsRunNotFound(err))

	active := &models.WorkflowRun{
		ID:             "run-active",
		WorkflowID:     "onboard-new-user",
		IdempotencyKey: "ada@example.com",
		Status:         models.RunStatusWaiting,
	}
	require.NoError(t, p.RunRepository().SaveRun(ctx, active))

	found, err := p.RunRepository().ActiveRun(ctx, "onboard-new-user", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "run-active", found.ID)

	// Different idempotency key is a different logical operation.
	_, err = p.RunRepository().ActiveRun(ctx, "onboard-new-user", "grace@example.com")
	assert.True(t, persistence.IsRunNotFound(err))
}

func TestUserRepositoryUpsertByEmail(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	id, err := p.UserRepository().UpsertByEmail(ctx, &models.User{
		Email:         "ada.lovelace@start-berlin.com",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		PersonalEmail: "ada@example.com",
		BatchNumber:   12,
		Status:        models.UserStatusOnboarding,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// Second upsert with the same email updates in place.
	id2, err := p.UserRepository().UpsertByEmail(ctx, &models.User{
		Email:         "ada.lovelace@start-berlin.com",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		PersonalEmail: "ada@example.com",
		BatchNumber:   13,
		Status:        models.UserStatusActive,
	})
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	user, err := p.UserRepository().FindByEmail(ctx, "ada.lovelace@start-berlin.com")
	require.NoError(t, err)
	assert.Equal(t, 13, user.BatchNumber)
	assert.Equal(t, models.UserStatusActive, user.Status)

	byID, err := p.UserRepository().FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)

	onboarding, err := p.UserRepository().ListByStatus(ctx, models.UserStatusOnboarding)
	require.NoError(t, err)
	assert.Empty(t, onboarding)
}

func TestUserRepositoryNotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	_, err := p.UserRepository().FindByEmail(ctx, "nobody@start-berlin.com")
	assert.True(t, persistence.IsUserNotFound(err))

	_, err = p.UserRepository().FindByID(ctx, "usr_missing")
	assert.True(t, persistence.IsUserNotFound(err))
}

func TestGroupRepositoryInsertIfAbsent(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	group := &models.Group{ID: "grp_1", Name: "Marketing", Slug: "marketing"}
	require.NoError(t, p.GroupRepository().InsertIfAbsent(ctx, group))

	// Redelivery: same ID is a no-op, original row survives.
	dup := &models.Group{ID: "grp_1", Name: "Marketing Renamed", Slug: "marketing-renamed"}
	require.NoError(t, p.GroupRepository().InsertIfAbsent(ctx, dup))

	found, err := p.GroupRepository().FindByID(ctx, "grp_1")
	require.NoError(t, err)
	assert.Equal(t, "Marketing", found.Name)

	bySlug, err := p.GroupRepository().FindBySlug(ctx, "marketing")
	require.NoError(t, err)
	assert.Equal(t, "grp_1", bySlug.ID)

	_, err = p.GroupRepository().FindBySlug(ctx, "unknown")
	assert.True(t, persistence.IsGroupNotFound(err))
}

func TestHealthCheck(t *testing.T) {
	p := NewPersistence(t.TempDir())
	assert.NoError(t, p.HealthCheck(context.Background()))

	missing := NewPersistence("/nonexistent/cockpit-data")
	assert.Error(t, missing.HealthCheck(context.Background()))
}
