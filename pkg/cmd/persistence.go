package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/start-berlin/cockpit/pkg/persistence"
	"github.com/start-berlin/cockpit/pkg/persistence/file"
	"github.com/start-berlin/cockpit/pkg/persistence/postgresql"
	"github.com/start-berlin/cockpit/pkg/persistence/redis"
)

// NewPersistence selects the persistence backend from the database URL
// scheme. Anything that is not postgres is treated as a filesystem path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

// NewRunRepository returns the run store for the worker. A redis URL selects
// the dedicated run store, anything else shares the directory persistence.
func NewRunRepository(p persistence.Persistence, redisURL string) (persistence.RunRepository, error) {
	if redisURL == "" {
		return p.RunRepository(), nil
	}

	store, err := redis.NewRunStore(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect run store: %w", err)
	}

	return store, nil
}
