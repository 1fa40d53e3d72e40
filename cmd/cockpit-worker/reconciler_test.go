package main

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/start-berlin/cockpit/pkg/events"
	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/persistence/file"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.published = append(p.published, event)

	return nil
}

func TestSweepEmitsUpdatesForOnboardingMembers(t *testing.T) {
	t.Parallel()

	p := file.NewPersistence(t.TempDir())
	publisher := &recordingPublisher{}

	onboardingID, err := p.UserRepository().UpsertByEmail(context.Background(), &models.User{
		Email:         "jane.doe@start-berlin.com",
		FirstName:     "Jane",
		LastName:      "Doe",
		PersonalEmail: "jane@example.com",
		Status:        models.UserStatusOnboarding,
	})
	require.NoError(t, err)

	_, err = p.UserRepository().UpsertByEmail(context.Background(), &models.User{
		Email:         "john.doe@start-berlin.com",
		FirstName:     "John",
		LastName:      "Doe",
		PersonalEmail: "john@example.com",
		Status:        models.UserStatusActive,
	})
	require.NoError(t, err)

	reconciler := NewReconciler(slog.Default(), p.UserRepository(), publisher, "@hourly")
	require.NoError(t, reconciler.Sweep(context.Background()))

	require.Len(t, publisher.published, 1)

	updated, ok := publisher.published[0].(*events.UserUpdated)
	require.True(t, ok)
	assert.Equal(t, onboardingID, updated.UserID)
}
