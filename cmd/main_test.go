package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caia/concierge/internal/config"
	"github.com/caia/concierge/internal/services"
	"github.com/caia/concierge/internal/services/catalog"
	"github.com/caia/concierge/internal/services/dispatch"
	"github.com/caia/concierge/pkg/protocol"
)

func newTestServices(t *testing.T) *services.Services {
	t.Helper()
	cat, err := catalog.Load("")
	require.NoError(t, err)

	echo := dispatch.GeneratorFunc(func(ctx context.Context, transcript, userText string) (string, error) {
		return "ok", nil
	})
	svc := services.Build(services.Dependencies{
		Catalog: cat,
		Generators: map[protocol.Participant]dispatch.Generator{
			protocol.Shopping: echo,
			protocol.Payment:  echo,
		},
		Conversation: config.GetConversationConfig(),
	})
	t.Cleanup(svc.Close)
	return svc
}

func TestMainServer(t *testing.T) {
	server := httptest.NewServer(setupRouter(newTestServices(t)))
	defer server.Close()

	t.Run("health endpoint", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("create session", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/v1/sessions", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.NotEmpty(t, body["sessionId"])
		assert.NotEmpty(t, body["token"])
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(data), "concierge_http_requests_total")
	})

	t.Run("unknown route", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/v1/nowhere")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
