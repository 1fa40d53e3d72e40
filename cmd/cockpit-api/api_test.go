package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/start-berlin/cockpit/pkg/events"
	"github.com/start-berlin/cockpit/pkg/persistence/file"
	"github.com/start-berlin/cockpit/pkg/token"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, events.Event) error { return nil }

func newTestAPI(t *testing.T) *API {
	t.Helper()

	return NewAPI(
		slog.Default(),
		file.NewPersistence(t.TempDir()),
		nopPublisher{},
		token.NewSigner("test-secret"),
		"slack-secret",
	)
}

func TestAPIRoot(t *testing.T) {
	t.Parallel()

	app := newTestAPI(t).App()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Cockpit API", string(body))
}

func TestAPIHealthEndpoints(t *testing.T) {
	t.Parallel()

	app := newTestAPI(t).App()

	for _, path := range []string{"/health", "/livez", "/readyz"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAPIRunsEmpty(t *testing.T) {
	t.Parallel()

	app := newTestAPI(t).App()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
