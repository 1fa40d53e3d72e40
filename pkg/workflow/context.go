package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/start-berlin/cockpit/pkg/events"
	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/otelhelper"
)

// Context is the per-run API handed to workflow handlers. Steps within one
// run execute strictly sequentially; the Context is never shared across
// goroutines.
type Context struct {
	runner   *Runner
	run      *models.WorkflowRun
	event    events.Event
	logger   *slog.Logger
	timedOut bool
}

// Event returns the triggering event.
func (c *Context) Event() events.Event {
	return c.event
}

// Logger returns the run-scoped logger.
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// RunID returns the identity of the current run.
func (c *Context) RunID() string {
	return c.run.ID
}

// RunStep executes fn under the step named name, at most once per run. A
// previously succeeded step returns its memoized result without invoking fn.
// Transient failures are retried with bounded exponential backoff; a
// NonRetriableError fails the step immediately. Exhausting retries marks the
// step failed and surfaces the last error to the handler.
func (c *Context) RunStep(ctx context.Context, name string, fn func(ctx context.Context) (any, error)) (any, error) {
	record := c.run.Step(name)
	if record.Status == models.StepStatusSucceeded {
		c.logger.DebugContext(ctx, "Step already succeeded, returning memoized result", "step", name)

		return record.Result, nil
	}

	logger := c.logger.With("step", name)

	var span trace.Span
	if c.runner.tracer != nil {
		ctx, span = c.runner.tracer.Start(ctx, "workflow.step",
			trace.WithAttributes(
				attribute.String(otelhelper.StepNameKey, name),
				attribute.String(otelhelper.RunIDKey, c.run.ID),
			))
		defer span.End()
	}

	var result any

	operation := func() error {
		record.Attempts++

		var err error

		result, err = fn(ctx)
		if err != nil {
			logger.WarnContext(ctx, "Step attempt failed", "attempt", record.Attempts, "error", err)

			if IsNonRetriable(err) {
				return backoff.Permanent(err)
			}

			return err
		}

		return nil
	}

	err := backoff.Retry(operation, c.runner.stepBackOff(ctx))
	now := time.Now().UTC()
	record.CompletedAt = &now

	if err != nil {
		record.Status = models.StepStatusFailed
		record.Error = err.Error()
		c.persist(ctx)

		if span != nil {
			otelhelper.SetError(span, err, attribute.String(otelhelper.StepNameKey, name))
		}

		return nil, fmt.Errorf("step %s failed: %w", name, err)
	}

	record.Status = models.StepStatusSucceeded
	record.Result = result
	record.Error = ""
	c.persist(ctx)

	logger.InfoContext(ctx, "Step succeeded", "attempts", record.Attempts)

	return result, nil
}

// WaitForEvent suspends the run under the step named name until an event of
// the given type whose data satisfies match arrives, or timeout elapses.
// The matched event data is returned and memoized; a timeout returns nil
// data and no error, and the handler must branch on it. The run is marked
// waiting for the duration, with the correlation recorded for operators.
func (c *Context) WaitForEvent(ctx context.Context, name string, eventType events.EventType, correlate string, match func(data map[string]any) bool, timeout time.Duration) (map[string]any, error) {
	record := c.run.Step(name)
	if record.Status == models.StepStatusSucceeded {
		if record.Result == nil {
			c.timedOut = true

			return nil, nil
		}

		return toDataMap(record.Result), nil
	}

	record.Attempts++

	w := &waiter{
		id:        uuid.New().String(),
		eventType: eventType,
		match:     match,
		ch:        make(chan map[string]any, 1),
	}
	c.runner.waiters.add(w)

	deadline := time.Now().UTC().Add(timeout)
	c.run.Status = models.RunStatusWaiting
	c.run.SuspendedOn = &models.Suspension{
		EventType: string(eventType),
		Deadline:  deadline,
		Correlate: correlate,
	}
	c.persist(ctx)

	c.logger.InfoContext(ctx, "Run suspended waiting for event",
		"step", name, "event_type", eventType, "deadline", deadline)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var (
		data     map[string]any
		timedOut bool
	)

	select {
	case data = <-w.ch:
	case <-timer.C:
		timedOut = true

		c.runner.waiters.remove(w.id)
	case <-ctx.Done():
		c.runner.waiters.remove(w.id)

		return nil, ctx.Err()
	}

	now := time.Now().UTC()
	record.CompletedAt = &now
	record.Status = models.StepStatusSucceeded

	c.run.Status = models.RunStatusRunning
	c.run.SuspendedOn = nil

	if timedOut {
		c.timedOut = true
		record.Result = nil
		c.persist(ctx)

		c.logger.InfoContext(ctx, "Wait timed out", "step", name, "event_type", eventType)

		return nil, nil
	}

	record.Result = data
	c.persist(ctx)

	c.logger.InfoContext(ctx, "Run resumed by correlated event", "step", name, "event_type", eventType)

	return data, nil
}

func (c *Context) persist(ctx context.Context) {
	c.run.UpdatedAt = time.Now().UTC()

	if err := c.runner.runs.SaveRun(ctx, c.run); err != nil {
		c.logger.ErrorContext(ctx, "Failed to persist run", "error", err)
	}
}

// toDataMap normalizes a memoized result back into a map after a JSON
// round-trip through the run store.
func toDataMap(value any) map[string]any {
	if data, ok := value.(map[string]any); ok {
		return data
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return map[string]any{}
	}

	data := make(map[string]any)
	if err := json.Unmarshal(raw, &data); err != nil {
		return map[string]any{}
	}

	return data
}

// DecodeResult converts a memoized step result into a typed value. Step
// results survive a JSON round-trip through the run store, so handlers
// passing structs between steps decode them through this instead of type
// assertions.
func DecodeResult(value, out any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, out)
}
