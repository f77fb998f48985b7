package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souschef-ai/souschef/core"
	"github.com/souschef-ai/souschef/guard"
	"github.com/souschef-ai/souschef/orchestrator"
	"github.com/souschef-ai/souschef/relay"
	"github.com/souschef-ai/souschef/session"
)

// readSSE collects event lines until the stream ends or the deadline passes.
func readSSE(t *testing.T, body *bufio.Reader, until string, deadline time.Duration) []string {
	t.Helper()

	var lines []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			line, err := body.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\n")
			if line != "" {
				lines = append(lines, line)
			}
			if strings.HasPrefix(line, until) {
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(deadline):
		t.Fatalf("timed out waiting for %q, got %v", until, lines)
	}
	return lines
}

func TestJobEventsStream(t *testing.T) {
	g := guard.New(guard.NewStaticVerifier())
	orch := orchestrator.New(session.NewInMemoryStore(), &stubAgent{}, g)
	rly := relay.New(nil)

	srv, err := New(orch, g, rly, func(o *Options) { o.Heartbeat = 50 * time.Millisecond })
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/jobs/j1/events")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	// The handshake event confirms the subscription is registered.
	lines := readSSE(t, reader, "data:", 2*time.Second)
	assert.Contains(t, lines[0], "event: connected")

	post := func(ev core.JobProgressEvent) {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(ev))
		res, err := http.Post(ts.URL+"/api/internal/jobs/j1/progress", "application/json", &buf)
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, res.StatusCode)
		_ = res.Body.Close()
	}

	post(core.JobProgressEvent{Status: "transcribing", Progress: 30})
	lines = readSSE(t, reader, "data:", 2*time.Second)
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "event: progress")
	assert.Contains(t, joined, `"progress":30`)

	// A terminal event delivers, then the relay releases the channel and the
	// stream ends.
	post(core.JobProgressEvent{Status: "complete", Progress: 100})
	lines = readSSE(t, reader, "event: end", 2*time.Second)
	joined = strings.Join(lines, "\n")
	assert.Contains(t, joined, `"progress":100`)
	assert.Contains(t, joined, "event: end")
}

func TestJobEventsHeartbeat(t *testing.T) {
	g := guard.New(guard.NewStaticVerifier())
	orch := orchestrator.New(session.NewInMemoryStore(), &stubAgent{}, g)

	srv, err := New(orch, g, relay.New(nil), func(o *Options) { o.Heartbeat = 20 * time.Millisecond })
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/jobs/j2/events")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	reader := bufio.NewReader(resp.Body)
	lines := readSSE(t, reader, ": heartbeat", 2*time.Second)
	assert.Contains(t, strings.Join(lines, "\n"), ": heartbeat")
}
