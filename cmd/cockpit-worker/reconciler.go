package main

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/start-berlin/cockpit/pkg/eventbus"
	"github.com/start-berlin/cockpit/pkg/events"
	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/persistence"
)

// Reconciler periodically re-emits update events for members stuck in
// onboarding, so missed Slack webhooks or dropped messages heal themselves on
// the next sweep.
type Reconciler struct {
	logger    *slog.Logger
	directory persistence.UserRepository
	publisher eventbus.EventPublisher
	cron      *cron.Cron
	schedule  string
}

func NewReconciler(
	logger *slog.Logger,
	directory persistence.UserRepository,
	publisher eventbus.EventPublisher,
	schedule string,
) *Reconciler {
	return &Reconciler{
		logger:    logger.With("module", "reconciler"),
		directory: directory,
		publisher: publisher,
		cron:      cron.New(),
		schedule:  schedule,
	}
}

func (r *Reconciler) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		if err := r.Sweep(ctx); err != nil {
			r.logger.ErrorContext(ctx, "Reconciliation sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	r.logger.InfoContext(ctx, "Reconciler started", "schedule", r.schedule)

	return nil
}

func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
}

// Sweep emits one update event per member still in onboarding.
func (r *Reconciler) Sweep(ctx context.Context) error {
	users, err := r.directory.ListByStatus(ctx, models.UserStatusOnboarding)
	if err != nil {
		return err
	}

	for _, user := range users {
		err := r.publisher.Publish(ctx, user.ID, &events.UserUpdated{
			BaseEvent: events.NewBaseEvent(events.UserUpdatedEvent),
			UserID:    user.ID,
		})
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to publish update event", "user_id", user.ID, "error", err)

			continue
		}
	}

	r.logger.InfoContext(ctx, "Reconciliation sweep finished", "users", len(users))

	return nil
}
