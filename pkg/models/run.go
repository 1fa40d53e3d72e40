package models

import "time"

// RunStatus is the lifecycle state of one workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusWaiting   RunStatus = "waiting"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusTimedOut  RunStatus = "timed_out"
)

// Terminal reports whether the status admits no further transitions. The
// idempotency guard only dedupes against non-terminal runs.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusTimedOut:
		return true
	default:
		return false
	}
}

// StepStatus is the state of one named step within a run.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
)

// StepRecord memoizes one step execution. Once succeeded, replaying the run
// returns Result without invoking the step body again.
type StepRecord struct {
	Name        string     `json:"name"`
	Status      StepStatus `json:"status"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	Attempts    int        `json:"attempts"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Suspension records what a waiting run is suspended on, for operator
// visibility and deadline enforcement.
type Suspension struct {
	EventType string    `json:"event_type"`
	Deadline  time.Time `json:"deadline"`
	Correlate string    `json:"correlate,omitempty"`
}

// WorkflowRun is one execution of a workflow definition triggered by one
// event. Step records are owned exclusively by their run.
type WorkflowRun struct {
	ID                string         `json:"id"`
	WorkflowID        string         `json:"workflow_id"`
	TriggeringEventID string         `json:"triggering_event_id"`
	IdempotencyKey    string         `json:"idempotency_key,omitempty"`
	Status            RunStatus      `json:"status"`
	Steps             []*StepRecord  `json:"steps"`
	SuspendedOn       *Suspension    `json:"suspended_on,omitempty"`
	Result            map[string]any `json:"result,omitempty"`
	Error             string         `json:"error,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Step returns the record for name, creating it lazily on first use.
func (r *WorkflowRun) Step(name string) *StepRecord {
	for _, step := range r.Steps {
		if step.Name == name {
			return step
		}
	}

	step := &StepRecord{Name: name, Status: StepStatusPending}
	r.Steps = append(r.Steps, step)

	return step
}
