package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/start-berlin/cockpit/pkg/eventbus"
	"github.com/start-berlin/cockpit/pkg/events"
	"github.com/start-berlin/cockpit/pkg/workflow"
)

// WorkerManager subscribes the workflow runner to the event bus and keeps it
// running until the process is signalled to stop.
type WorkerManager struct {
	id       string
	logger   *slog.Logger
	runner   *workflow.Runner
	eventBus eventbus.EventBus
}

func NewWorkerManager(
	id string,
	runner *workflow.Runner,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *WorkerManager {
	return &WorkerManager{
		id:       id,
		logger:   logger.With("module", "cockpit-worker", "worker_id", id),
		runner:   runner,
		eventBus: eventBus,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	// Every event type goes through Dispatch: types without a triggered
	// definition can still resume a suspended run.
	for _, eventType := range events.All() {
		if err := w.eventBus.Handle(eventType, w.runner.Dispatch); err != nil {
			return err
		}
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	// Let in-flight runs finish before the bus connection drops.
	w.runner.Wait()

	return nil
}
