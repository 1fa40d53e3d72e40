// Package persistence provides the storage abstraction for the Cockpit
// directory and the workflow run records.
package persistence

import (
	"context"

	"github.com/start-berlin/cockpit/pkg/models"
)

// RunRepository stores workflow run and step records. Runs are only ever
// written by the run that owns them.
type RunRepository interface {
	SaveRun(ctx context.Context, run *models.WorkflowRun) error
	RunByID(ctx context.Context, id string) (*models.WorkflowRun, error)

	// ActiveRun returns the single non-terminal run for the pair, or
	// ErrRunNotFound. This backs the idempotency guard.
	ActiveRun(ctx context.Context, workflowID, idempotencyKey string) (*models.WorkflowRun, error)

	RunsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowRun, error)
	Runs(ctx context.Context) ([]*models.WorkflowRun, error)
}

// UserRepository is the directory user store. Email (the company address) is
// the natural unique key.
type UserRepository interface {
	UpsertByEmail(ctx context.Context, user *models.User) (string, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListByStatus(ctx context.Context, status models.UserStatus) ([]*models.User, error)
}

// GroupRepository is the directory group store.
type GroupRepository interface {
	InsertIfAbsent(ctx context.Context, group *models.Group) error
	FindByID(ctx context.Context, id string) (*models.Group, error)
	FindBySlug(ctx context.Context, slug string) (*models.Group, error)
}

type Persistence interface {
	RunRepository() RunRepository
	UserRepository() UserRepository
	GroupRepository() GroupRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
