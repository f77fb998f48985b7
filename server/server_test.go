package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souschef-ai/souschef/core"
	"github.com/souschef-ai/souschef/guard"
	"github.com/souschef-ai/souschef/orchestrator"
	"github.com/souschef-ai/souschef/relay"
	"github.com/souschef-ai/souschef/session"
)

// stubAgent returns canned responses; the server tests exercise routing and
// error mapping, not agent semantics.
type stubAgent struct {
	startErr error
	endErr   error
}

func (a *stubAgent) StartSession(context.Context, string, core.Recipe) (*core.AgentGreeting, error) {
	if a.startErr != nil {
		return nil, a.startErr
	}
	return &core.AgentGreeting{SessionID: "ack", Message: "Let's cook!", TotalSteps: 2}, nil
}

func (a *stubAgent) SendMessage(_ context.Context, msg core.ChatMessage) (*core.ChatReply, error) {
	return &core.ChatReply{Reply: "Keep going."}, nil
}

func (a *stubAgent) CompleteStep(_ context.Context, _ string, stepNumber int) (*core.StepCompletion, error) {
	return &core.StepCompletion{Message: "done", NextStep: stepNumber + 1}, nil
}

func (a *stubAgent) FetchHistory(_ context.Context, sessionID string) (*core.ChatHistory, error) {
	return &core.ChatHistory{SessionID: sessionID, RecipeTitle: "Kimchi Stew"}, nil
}

func (a *stubAgent) EndSession(context.Context, string) (*core.SessionSummary, error) {
	if a.endErr != nil {
		return nil, a.endErr
	}
	return &core.SessionSummary{Message: "session ended"}, nil
}

func newTestServer(t *testing.T, agent core.AgentClient) *Server {
	t.Helper()
	g := guard.New(guard.NewStaticVerifier(
		guard.User{OwnerID: "u1", Email: "alice@example.com", Password: "secret"},
		guard.User{OwnerID: "u2", Email: "bob@example.com", Password: "hunter2"},
	))
	orch := orchestrator.New(session.NewInMemoryStore(), agent, g)

	srv, err := New(orch, g, relay.New(nil))
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, h http.Handler, method, path, email string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		req.Header.Set(PrincipalHeader, email)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func startSession(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/api/chat/start", email, core.Recipe{
		Title: "Kimchi Stew",
		Steps: []core.RecipeStep{
			{Position: 1, Instruction: "Slice the kimchi"},
			{Position: 2, Instruction: "Simmer"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.SessionID
}

func TestLogin(t *testing.T) {
	h := newTestServer(t, &stubAgent{}).Handler()

	w := doJSON(t, h, http.MethodPost, "/api/auth/login", "", creds("alice@example.com", "secret"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"owner_id":"u1"`)

	w = doJSON(t, h, http.MethodPost, "/api/auth/login", "", creds("alice@example.com", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func creds(email, password string) map[string]string {
	return map[string]string{"email": email, "password": password}
}

func TestMissingPrincipal(t *testing.T) {
	h := newTestServer(t, &stubAgent{}).Handler()

	w := doJSON(t, h, http.MethodGet, "/api/chat/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	h := newTestServer(t, &stubAgent{}).Handler()
	id := startSession(t, h, "alice@example.com")

	w := doJSON(t, h, http.MethodGet, "/api/chat/session/"+id, "alice@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"current_step":1`)

	w = doJSON(t, h, http.MethodPost, "/api/chat/message", "alice@example.com",
		core.ChatMessage{SessionID: id, StepNumber: 1, Message: "how long?"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Keep going.")

	w = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/chat/session/%s/complete-step/1", id), "alice@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/chat/session/"+id+"/history", "alice@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Kimchi Stew")

	w = doJSON(t, h, http.MethodGet, "/api/chat/sessions?active=true", "alice@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)

	w = doJSON(t, h, http.MethodDelete, "/api/chat/session/"+id, "alice@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "session ended")

	// Terminal sessions reject further mutation.
	w = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/chat/session/%s/complete-step/2", id), "alice@example.com", nil)
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestErrorMapping(t *testing.T) {
	h := newTestServer(t, &stubAgent{}).Handler()
	id := startSession(t, h, "alice@example.com")

	// Unknown principal resolves to 401.
	w := doJSON(t, h, http.MethodGet, "/api/chat/session/"+id, "mallory@example.com", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"authentication"`)

	// Another user's session is 403.
	w = doJSON(t, h, http.MethodGet, "/api/chat/session/"+id, "bob@example.com", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"forbidden"`)

	// Unknown session is 404.
	w = doJSON(t, h, http.MethodGet, "/api/chat/session/nope", "alice@example.com", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Out-of-range and non-numeric steps are 422.
	w = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/chat/session/%s/complete-step/99", id), "alice@example.com", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/chat/session/%s/complete-step/two", id), "alice@example.com", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// A recipe without a title is 400.
	w = doJSON(t, h, http.MethodPost, "/api/chat/start", "alice@example.com", core.Recipe{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"invalid_recipe"`)
}

func TestAgentDownMapsTo503(t *testing.T) {
	h := newTestServer(t, &stubAgent{startErr: core.ErrAgentUnavailable}).Handler()

	w := doJSON(t, h, http.MethodPost, "/api/chat/start", "alice@example.com", core.Recipe{
		Title: "Kimchi Stew",
		Steps: []core.RecipeStep{{Position: 1, Instruction: "Slice"}},
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"agent_unavailable"`)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, &stubAgent{}).Handler()
	startSession(t, h, "alice@example.com")

	w := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "souschef_sessions_started_total 1")
}

func TestJobProgressIngestion(t *testing.T) {
	srv := newTestServer(t, &stubAgent{})
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/internal/jobs/j1/progress", "",
		core.JobProgressEvent{Status: "running", Progress: 40})
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(t, h, http.MethodPost, "/api/internal/jobs/j1/progress", "", "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
