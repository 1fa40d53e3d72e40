package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/start-berlin/cockpit/pkg/events"
	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/otelhelper"
	"github.com/start-berlin/cockpit/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Config tunes step retry behavior.
type Config struct {
	// MaxStepAttempts bounds how often one step is tried before the run
	// fails. Must be at least 1.
	MaxStepAttempts int

	// InitialBackoff is the first retry delay; subsequent delays grow
	// exponentially.
	InitialBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxStepAttempts: 4,
		InitialBackoff:  500 * time.Millisecond,
	}
}

// Runner owns the registered workflow definitions, the idempotency guard and
// the waiter registry. Each run executes on its own goroutine; steps within a
// run are strictly sequential.
type Runner struct {
	logger      *slog.Logger
	runs        persistence.RunRepository
	definitions map[events.EventType][]*Definition
	waiters     *waiterRegistry
	cfg         Config
	tracer      trace.Tracer
	wg          sync.WaitGroup
}

type Option func(*Runner)

func WithConfig(cfg Config) Option {
	return func(r *Runner) {
		r.cfg = cfg
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

func NewRunner(logger *slog.Logger, runs persistence.RunRepository, opts ...Option) *Runner {
	runner := &Runner{
		logger:      logger.With("module", "workflow_runner"),
		runs:        runs,
		definitions: make(map[events.EventType][]*Definition),
		waiters:     newWaiterRegistry(),
		cfg:         DefaultConfig(),
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Register subscribes a definition to its trigger event type.
func (r *Runner) Register(def *Definition) error {
	if def.ID == "" || def.Trigger == "" || def.Handler == nil {
		return fmt.Errorf("workflow definition requires id, trigger and handler")
	}

	r.definitions[def.Trigger] = append(r.definitions[def.Trigger], def)
	r.logger.Info("Registered workflow", "workflow_id", def.ID, "trigger", def.Trigger)

	return nil
}

// Triggers returns the event types the runner needs delivered.
func (r *Runner) Triggers() []events.EventType {
	types := make([]events.EventType, 0, len(r.definitions)+1)
	for eventType := range r.definitions {
		types = append(types, eventType)
	}

	return types
}

// Dispatch routes one delivered event: suspended runs waiting on it are
// resumed first, then a run is started for every definition it triggers.
// Run execution is asynchronous; Dispatch never blocks on workflow bodies.
func (r *Runner) Dispatch(ctx context.Context, event events.Event) error {
	if err := events.ValidateEvent(event); err != nil {
		r.logger.WarnContext(ctx, "Dropping invalid event", "event_type", event.GetType(), "error", err)

		return nil
	}

	r.waiters.notify(event)

	for _, def := range r.definitions[event.GetType()] {
		r.wg.Add(1)

		go func(def *Definition) {
			defer r.wg.Done()

			r.startRun(ctx, def, event)
		}(def)
	}

	return nil
}

// Wait blocks until all in-flight runs have finished. Used on shutdown and
// in tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) startRun(ctx context.Context, def *Definition, event events.Event) {
	logger := r.logger.With(
		"workflow_id", def.ID,
		"event_id", event.GetID(),
		"event_type", event.GetType(),
	)

	var idempotencyKey string
	if def.IdempotencyKey != nil {
		idempotencyKey = def.IdempotencyKey(event)
	}

	// Idempotency guard: a non-terminal run for the same logical operation
	// absorbs the redelivered event.
	if idempotencyKey != "" {
		existing, err := r.runs.ActiveRun(ctx, def.ID, idempotencyKey)
		if err == nil {
			logger.InfoContext(ctx, "Duplicate event absorbed by active run",
				"run_id", existing.ID, "idempotency_key", idempotencyKey)

			return
		}

		if !persistence.IsRunNotFound(err) {
			logger.ErrorContext(ctx, "Idempotency lookup failed", "error", err)

			return
		}
	}

	now := time.Now().UTC()
	run := &models.WorkflowRun{
		ID:                "run-" + uuid.New().String(),
		WorkflowID:        def.ID,
		TriggeringEventID: event.GetID(),
		IdempotencyKey:    idempotencyKey,
		Status:            models.RunStatusRunning,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	logger = logger.With("run_id", run.ID)

	if err := r.runs.SaveRun(ctx, run); err != nil {
		// A concurrent worker won the race between the ActiveRun check
		// and the insert; this delivery is its duplicate.
		if persistence.IsDuplicateActiveRun(err) {
			logger.InfoContext(ctx, "Duplicate event absorbed by concurrent run",
				"idempotency_key", idempotencyKey)

			return
		}

		logger.ErrorContext(ctx, "Failed to create run record", "error", err)

		return
	}

	if r.tracer != nil {
		var span trace.Span

		ctx, span = r.tracer.Start(ctx, "workflow.run",
			trace.WithAttributes(
				attribute.String(otelhelper.WorkflowIDKey, def.ID),
				attribute.String(otelhelper.RunIDKey, run.ID),
				attribute.String(otelhelper.EventIDKey, event.GetID()),
				attribute.String(otelhelper.EventTypeKey, string(event.GetType())),
			))
		defer span.End()

		defer func() {
			otelhelper.RecordRunStatus(span, string(run.Status), run.Error)
		}()
	}

	logger.InfoContext(ctx, "Starting workflow run")

	runCtx := &Context{
		runner: r,
		run:    run,
		event:  event,
		logger: logger,
	}

	result, err := def.Handler(ctx, runCtx)
	run.UpdatedAt = time.Now().UTC()

	switch {
	case err != nil:
		run.Status = models.RunStatusFailed
		run.Error = err.Error()

		logger.ErrorContext(ctx, "Workflow run failed", "error", err, "non_retriable", IsNonRetriable(err))
	case runCtx.timedOut:
		run.Status = models.RunStatusTimedOut
		run.Result = result

		logger.InfoContext(ctx, "Workflow run timed out waiting for event")
	default:
		run.Status = models.RunStatusCompleted
		run.Result = result

		logger.InfoContext(ctx, "Workflow run completed")
	}

	if err := r.runs.SaveRun(ctx, run); err != nil {
		logger.ErrorContext(ctx, "Failed to persist final run state", "error", err)
	}
}

// stepBackOff builds the per-step retry policy from the runner config.
func (r *Runner) stepBackOff(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.InitialBackoff

	attempts := r.cfg.MaxStepAttempts
	if attempts < 1 {
		attempts = 1
	}

	return backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx)
}
