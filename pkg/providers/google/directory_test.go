package google

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/start-berlin/cockpit/pkg/providers"
)

func TestMapErrorConflictBecomesAlreadyExists(t *testing.T) {
	t.Parallel()

	err := mapError("failed to create user", &googleapi.Error{Code: http.StatusConflict})
	assert.ErrorIs(t, err, providers.ErrAlreadyExists)
}

func TestMapErrorDuplicateMessageBecomesAlreadyExists(t *testing.T) {
	t.Parallel()

	err := mapError("failed to create user", &googleapi.Error{
		Code:    http.StatusBadRequest,
		Message: "Entity already exists.",
	})
	assert.ErrorIs(t, err, providers.ErrAlreadyExists)
}

func TestMapErrorKeepsOtherErrors(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")

	err := mapError("failed to create user", cause)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, providers.ErrAlreadyExists)
	assert.Contains(t, err.Error(), "failed to create user")
}
