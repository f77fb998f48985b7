package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/souschef-ai/souschef/core"
	"github.com/souschef-ai/souschef/logging"
)

// DefaultTimeout bounds each agent call. The agent call is the expensive,
// blocking step of every operation; a single-digit-seconds ceiling keeps a
// hung agent from pinning workers.
const DefaultTimeout = 8 * time.Second

// Options holds configuration overrides passed to NewHTTPClient.
type Options struct {
	// Timeout bounds each request including connection setup and body read.
	Timeout time.Duration
	// HTTPClient overrides the underlying transport (primarily for tests).
	HTTPClient *http.Client
	// Logger receives per-call diagnostics.
	Logger logging.Logger
}

// HTTPClient talks to the conversational agent over JSON/HTTP. The session
// id is always supplied by this side, never generated remotely.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  logging.Logger
}

// NewHTTPClient constructs a client for the agent at baseURL.
func NewHTTPClient(baseURL string, optFns ...func(o *Options)) *HTTPClient {
	opts := Options{
		Timeout: DefaultTimeout,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

// startSessionRequest is the wire payload for POST /api/chat/start.
type startSessionRequest struct {
	SessionID string      `json:"session_id"`
	Recipe    core.Recipe `json:"recipe"`
}

// Wire mirrors with pointer fields so an absent required field can be told
// apart from a zero value; absence is an ErrAgentProtocol, never a silent
// default.
type startSessionWire struct {
	SessionID  *string `json:"session_id"`
	Message    *string `json:"message"`
	TotalSteps *int    `json:"total_steps"`
}

type chatReplyWire struct {
	Reply         *string             `json:"reply"`
	StepInfo      *core.ReplyStepInfo `json:"step_info"`
	SessionStatus *core.ReplyStatus   `json:"session_status"`
}

type stepCompletionWire struct {
	Message    string `json:"message"`
	NextStep   *int   `json:"next_step"`
	IsFinished *bool  `json:"is_finished"`
}

type historyWire struct {
	SessionID   *string               `json:"session_id"`
	RecipeTitle string                `json:"recipe_title"`
	Messages    []core.HistoryMessage `json:"messages"`
}

// StartSession registers the session and its recipe with the agent.
func (c *HTTPClient) StartSession(ctx context.Context, sessionID string, recipe core.Recipe) (*core.AgentGreeting, error) {
	var wire startSessionWire
	err := c.do(ctx, http.MethodPost, "/api/chat/start", startSessionRequest{SessionID: sessionID, Recipe: recipe}, &wire)
	if err != nil {
		return nil, err
	}
	if wire.SessionID == nil || wire.Message == nil {
		return nil, fmt.Errorf("%w: start response missing session_id or message", core.ErrAgentProtocol)
	}

	greeting := &core.AgentGreeting{SessionID: *wire.SessionID, Message: *wire.Message}
	if wire.TotalSteps != nil {
		greeting.TotalSteps = *wire.TotalSteps
	}
	return greeting, nil
}

// SendMessage forwards one user turn and returns the agent's reply.
func (c *HTTPClient) SendMessage(ctx context.Context, msg core.ChatMessage) (*core.ChatReply, error) {
	var wire chatReplyWire
	if err := c.do(ctx, http.MethodPost, "/api/chat/message", msg, &wire); err != nil {
		return nil, err
	}
	if wire.Reply == nil {
		return nil, fmt.Errorf("%w: chat response missing reply", core.ErrAgentProtocol)
	}

	reply := &core.ChatReply{Reply: *wire.Reply}
	if wire.StepInfo != nil {
		reply.StepInfo = *wire.StepInfo
	}
	if wire.SessionStatus != nil {
		reply.SessionStatus = *wire.SessionStatus
	}
	return reply, nil
}

// CompleteStep reports a finished step to the agent.
func (c *HTTPClient) CompleteStep(ctx context.Context, sessionID string, stepNumber int) (*core.StepCompletion, error) {
	path := fmt.Sprintf("/api/chat/session/%s/complete-step/%d", sessionID, stepNumber)

	var wire stepCompletionWire
	if err := c.do(ctx, http.MethodPost, path, nil, &wire); err != nil {
		return nil, err
	}
	if wire.IsFinished == nil || wire.NextStep == nil {
		return nil, fmt.Errorf("%w: complete-step response missing is_finished or next_step", core.ErrAgentProtocol)
	}

	return &core.StepCompletion{
		Message:    wire.Message,
		NextStep:   *wire.NextStep,
		IsFinished: *wire.IsFinished,
	}, nil
}

// FetchHistory returns the agent-held transcript.
func (c *HTTPClient) FetchHistory(ctx context.Context, sessionID string) (*core.ChatHistory, error) {
	path := fmt.Sprintf("/api/chat/session/%s/history", sessionID)

	var wire historyWire
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	if wire.SessionID == nil || wire.Messages == nil {
		return nil, fmt.Errorf("%w: history response missing session_id or messages", core.ErrAgentProtocol)
	}

	return &core.ChatHistory{
		SessionID:   *wire.SessionID,
		RecipeTitle: wire.RecipeTitle,
		Messages:    wire.Messages,
	}, nil
}

// EndSession tears the agent-side session down.
func (c *HTTPClient) EndSession(ctx context.Context, sessionID string) (*core.SessionSummary, error) {
	path := fmt.Sprintf("/api/chat/session/%s", sessionID)

	var wire struct {
		Message *string         `json:"message"`
		Summary json.RawMessage `json:"summary"`
	}
	if err := c.do(ctx, http.MethodDelete, path, nil, &wire); err != nil {
		return nil, err
	}
	if wire.Message == nil {
		return nil, fmt.Errorf("%w: end response missing message", core.ErrAgentProtocol)
	}

	summary := &core.SessionSummary{Message: *wire.Message}
	if len(wire.Summary) > 0 {
		if err := json.Unmarshal(wire.Summary, &summary.Summary); err != nil {
			return nil, fmt.Errorf("%w: malformed end summary: %v", core.ErrAgentProtocol, err)
		}
	}
	return summary, nil
}

// do executes one bounded request/response cycle and decodes the body into
// out. Transport failures map to ErrAgentUnavailable, non-success responses
// to ErrAgentRejected, undecodable or empty bodies to ErrAgentProtocol.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("agent call failed op=%s %s err=%v", method, path, err)
		return fmt.Errorf("%w: %s %s: %v", core.ErrAgentUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("agent call op=%s %s status=%d duration=%s", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", core.ErrAgentRejected, method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: undecodable response body: %v", core.ErrAgentProtocol, err)
	}
	return nil
}
