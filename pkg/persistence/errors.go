package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrUserNotFound indicates a directory user was not found.
	ErrUserNotFound = errors.New("user not found")

	// ErrGroupNotFound indicates a directory group was not found.
	ErrGroupNotFound = errors.New("group not found")

	// ErrRunNotFound indicates a workflow run was not found.
	ErrRunNotFound = errors.New("workflow run not found")

	// ErrDuplicateActiveRun indicates another non-terminal run already
	// holds the same (workflow, idempotency key) pair. Backends that can
	// enforce this atomically return it from SaveRun, closing the race
	// between the ActiveRun check and the insert.
	ErrDuplicateActiveRun = errors.New("active run already exists for idempotency key")
)

// RunError wraps run-related errors with operation context.
type RunError struct {
	Op         string // Operation being performed (e.g., "SaveRun", "ActiveRun")
	RunID      string
	WorkflowID string
	Err        error
}

func (e *RunError) Error() string {
	target := e.RunID
	if target == "" {
		target = fmt.Sprintf("workflow %s", e.WorkflowID)
	}

	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, target, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRunError creates a new run error with context.
func NewRunError(op, runID string, err error) *RunError {
	return &RunError{Op: op, RunID: runID, Err: err}
}

// DirectoryError wraps directory-related errors with operation context.
type DirectoryError struct {
	Op     string
	Entity string // "user" or "group"
	Key    string // email, id or slug used for the lookup
	Err    error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.Key, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

func (e *DirectoryError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsUserNotFound checks if an error indicates a directory user was not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsGroupNotFound checks if an error indicates a directory group was not found.
func IsGroupNotFound(err error) bool {
	return errors.Is(err, ErrGroupNotFound)
}

// IsRunNotFound checks if an error indicates a workflow run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsDuplicateActiveRun checks if an error indicates the idempotency guard
// rejected a concurrent run for the same key.
func IsDuplicateActiveRun(err error) bool {
	return errors.Is(err, ErrDuplicateActiveRun)
}
