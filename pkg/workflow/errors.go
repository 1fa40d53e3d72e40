package workflow

import "errors"

// NonRetriableError marks a step failure as permanent: the step is not
// retried and the run transitions straight to failed. Used for precondition
// violations like a Slack joiner with no directory record.
type NonRetriableError struct {
	Err error
}

func (e *NonRetriableError) Error() string {
	return e.Err.Error()
}

func (e *NonRetriableError) Unwrap() error {
	return e.Err
}

// NonRetriable wraps err so the executor fails the run without retrying.
func NonRetriable(err error) error {
	return &NonRetriableError{Err: err}
}

// IsNonRetriable reports whether err (or anything it wraps) is non-retriable.
func IsNonRetriable(err error) bool {
	var nonRetriable *NonRetriableError

	return errors.As(err, &nonRetriable)
}
