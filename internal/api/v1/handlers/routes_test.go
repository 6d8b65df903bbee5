package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caia/concierge/internal/api/v1/handlers/sessions"
	"github.com/caia/concierge/internal/config"
	"github.com/caia/concierge/internal/services"
	"github.com/caia/concierge/internal/services/catalog"
	"github.com/caia/concierge/internal/services/dispatch"
	"github.com/caia/concierge/internal/services/events"
	"github.com/caia/concierge/pkg/httpext"
	"github.com/caia/concierge/pkg/protocol"
)

func setupTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	cat, err := catalog.Load("")
	require.NoError(t, err)

	reply := dispatch.GeneratorFunc(func(ctx context.Context, transcript, userText string) (string, error) {
		return "Happy to help with that.", nil
	})

	conv := config.GetConversationConfig()
	conv.RevealInterval = time.Millisecond
	conv.RevealIncrement = 100

	svc := services.Build(services.Dependencies{
		Catalog: cat,
		Generators: map[protocol.Participant]dispatch.Generator{
			protocol.Shopping: reply,
			protocol.Payment:  reply,
		},
		Conversation: conv,
	})
	t.Cleanup(svc.Close)

	router := mux.NewRouter()
	RegisterV1Routes(router, svc)
	return router
}

func do(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func createSession(t *testing.T, router http.Handler) sessions.CreateSessionResponse {
	t.Helper()
	rr := do(t, router, "POST", "/v1/sessions", "", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp sessions.CreateSessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	require.NotEmpty(t, resp.Token)
	return resp
}

func TestSessionLifecycle(t *testing.T) {
	router := setupTestRouter(t)
	created := createSession(t, router)
	assert.Equal(t, "demo_with_cards", created.CustomerID)

	base := "/v1/sessions/" + created.SessionID

	rr := do(t, router, "GET", base, created.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snap sessions.SnapshotResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, created.SessionID, snap.SessionID)
	assert.Equal(t, "IDLE", string(snap.Status))
	assert.Equal(t, protocol.Shopping, snap.ActiveAgent)

	rr = do(t, router, "POST", base+"/messages", created.Token, sessions.MessageRequest{Text: "show me t-shirts"})
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.JSONEq(t, `{"status":"accepted"}`, rr.Body.String())

	rr = do(t, router, "POST", base+"/cards/select", created.Token, sessions.SelectCardRequest{CardID: "card_visa_01"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, router, "POST", base+"/reset", created.Token, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, router, "DELETE", base, created.Token, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	// The token is revoked along with the session.
	rr = do(t, router, "GET", base, created.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateSessionRejectsUnknownCustomer(t *testing.T) {
	router := setupTestRouter(t)

	rr := do(t, router, "POST", "/v1/sessions", "", sessions.CreateSessionRequest{CustomerID: "nobody"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, "POST", "/v1/sessions", "", sessions.CreateSessionRequest{CustomerID: "demo_no_cards"})
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestMessageValidation(t *testing.T) {
	router := setupTestRouter(t)
	created := createSession(t, router)
	path := "/v1/sessions/" + created.SessionID + "/messages"

	rr := do(t, router, "POST", path, created.Token, sessions.MessageRequest{Text: ""})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp httpext.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "required", resp.Fields["Text"])

	req := httptest.NewRequest("POST", path, strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+created.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewCardValidation(t *testing.T) {
	router := setupTestRouter(t)
	created := createSession(t, router)

	rr := do(t, router, "POST", "/v1/sessions/"+created.SessionID+"/cards/new", created.Token, map[string]string{
		"cardNumber": "4111-abcd",
		"nameOnCard": "",
		"expiry":     "13/99",
		"cvv":        "1",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp httpext.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid card details", resp.Error)
	assert.Contains(t, resp.Fields, "cardNumber")
	assert.Contains(t, resp.Fields, "nameOnCard")
	assert.Contains(t, resp.Fields, "expiry")
	assert.Contains(t, resp.Fields, "cvv")
}

func TestSessionRoutesRequireToken(t *testing.T) {
	router := setupTestRouter(t)
	first := createSession(t, router)
	second := createSession(t, router)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "missing token", path: "/v1/sessions/" + first.SessionID, token: "", status: http.StatusUnauthorized},
		{name: "garbage token", path: "/v1/sessions/" + first.SessionID, token: "not-a-jwt", status: http.StatusUnauthorized},
		{name: "token for another session", path: "/v1/sessions/" + first.SessionID, token: second.Token, status: http.StatusForbidden},
		{name: "own session", path: "/v1/sessions/" + second.SessionID, token: second.Token, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, router, "GET", tt.path, tt.token, nil)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestListProducts(t *testing.T) {
	router := setupTestRouter(t)

	rr := do(t, router, "GET", "/v1/catalog/products", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Products []protocol.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Products)
}

func TestEventStream(t *testing.T) {
	router := setupTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	created := createSession(t, router)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/sessions/" + created.SessionID + "/ws?token=" + created.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	rr := do(t, router, "POST", "/v1/sessions/"+created.SessionID+"/messages", created.Token, sessions.MessageRequest{Text: "hello"})
	require.Equal(t, http.StatusAccepted, rr.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var ev events.Event
		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, created.SessionID, ev.SessionID)
		if ev.Type == events.MessageCreated && ev.Message != nil && ev.Message.FromUser {
			assert.Equal(t, "hello", ev.Message.FullText)
			return
		}
	}
}

func TestEventStreamRequiresToken(t *testing.T) {
	router := setupTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	created := createSession(t, router)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/sessions/" + created.SessionID + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
