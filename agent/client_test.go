package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souschef-ai/souschef/core"
	"github.com/souschef-ai/souschef/internal/testutil"
)

// Interface compliance (compile-time assertion)
var _ core.AgentClient = (*HTTPClient)(nil)

func testRecipe() core.Recipe {
	return testutil.NewRecipeBuilder().Step("Slice the kimchi").Step("Simmer").Build()
}

func TestHTTPClient_StartSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat/start", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"session_id":"sess-1","message":"Let's cook!","total_steps":2}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	greeting, err := c.StartSession(context.Background(), "sess-1", testRecipe())
	require.NoError(t, err)
	assert.Equal(t, "sess-1", greeting.SessionID)
	assert.Equal(t, "Let's cook!", greeting.Message)
	assert.Equal(t, 2, greeting.TotalSteps)
}

func TestHTTPClient_StartSession_MissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"session_id":"sess-1"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	_, err := c.StartSession(context.Background(), "sess-1", testRecipe())
	assert.ErrorIs(t, err, core.ErrAgentProtocol)
}

func TestHTTPClient_SendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/message", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"reply":"Looks great, keep stirring.",
			"step_info":{"step_number":1,"instruction":"Slice the kimchi","is_completed":false},
			"session_status":{"current_step":2,"completed_steps":[1],"progress_percent":50}
		}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	reply, err := c.SendMessage(context.Background(), core.ChatMessage{SessionID: "sess-1", StepNumber: 1, Message: "how does it look?"})
	require.NoError(t, err)
	assert.Equal(t, "Looks great, keep stirring.", reply.Reply)
	require.NotNil(t, reply.SessionStatus.CurrentStep)
	assert.Equal(t, 2, *reply.SessionStatus.CurrentStep)
}

func TestHTTPClient_SendMessage_NoCurrentStep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"reply":"ok","step_info":{},"session_status":{"progress_percent":0}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	reply, err := c.SendMessage(context.Background(), core.ChatMessage{SessionID: "sess-1", StepNumber: 1, Message: "hi"})
	require.NoError(t, err)
	assert.Nil(t, reply.SessionStatus.CurrentStep, "absent current_step must stay distinguishable")
}

func TestHTTPClient_CompleteStep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/session/sess-1/complete-step/2", r.URL.Path)
		_, _ = w.Write([]byte(`{"message":"Step 2 done","next_step":3,"is_finished":false}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	res, err := c.CompleteStep(context.Background(), "sess-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, res.NextStep)
	assert.False(t, res.IsFinished)
}

func TestHTTPClient_CompleteStep_MissingIsFinished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Step 2 done"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	_, err := c.CompleteStep(context.Background(), "sess-1", 2)
	assert.ErrorIs(t, err, core.ErrAgentProtocol)
}

func TestHTTPClient_FetchHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/chat/session/sess-1/history", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"session_id":"sess-1",
			"recipe_title":"Kimchi Stew",
			"messages":[{"role":"user","content":"\"hello\"","step_number":1}]
		}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	history, err := c.FetchHistory(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Kimchi Stew", history.RecipeTitle)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "user", history.Messages[0].Role)
}

func TestHTTPClient_EndSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/chat/session/sess-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"message":"session ended","summary":{"recipe":"Kimchi Stew","completed_steps":2,"total_steps":2,"total_messages":7}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	summary, err := c.EndSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "session ended", summary.Message)
	assert.Equal(t, 2, summary.Summary.CompletedSteps)
}

func TestHTTPClient_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"잘못된 단계 번호입니다."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	_, err := c.CompleteStep(context.Background(), "sess-1", 99)
	assert.ErrorIs(t, err, core.ErrAgentRejected)
}

func TestHTTPClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewHTTPClient(srv.URL)
	_, err := c.FetchHistory(context.Background(), "sess-1")
	assert.ErrorIs(t, err, core.ErrAgentUnavailable)
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() { close(release); srv.Close() }()

	c := NewHTTPClient(srv.URL, func(o *Options) { o.Timeout = 50 * time.Millisecond })
	_, err := c.FetchHistory(context.Background(), "sess-1")
	assert.ErrorIs(t, err, core.ErrAgentUnavailable)
}
