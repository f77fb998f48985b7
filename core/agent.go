package core

import (
	"context"
	"encoding/json"
)

// AgentGreeting is the agent's acknowledgement of a started session.
type AgentGreeting struct {
	SessionID  string `json:"session_id"`
	Message    string `json:"message"`
	TotalSteps int    `json:"total_steps"`
}

// ChatMessage is one user turn forwarded to the agent. ImageBase64 is
// optional; when set the agent analyses the photo alongside the text.
type ChatMessage struct {
	SessionID   string `json:"session_id"`
	StepNumber  int    `json:"step_number"`
	Message     string `json:"message"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// ReplyStepInfo describes the step the reply refers to.
type ReplyStepInfo struct {
	StepNumber  int    `json:"step_number"`
	Instruction string `json:"instruction"`
	Tip         string `json:"tip,omitempty"`
	IsCompleted bool   `json:"is_completed"`
}

// ReplyStatus is the agent's view of session progress attached to a reply.
// CurrentStep is a pointer so an absent field can be distinguished from step
// zero; when present it overrides the local step position.
type ReplyStatus struct {
	CurrentStep     *int  `json:"current_step,omitempty"`
	CompletedSteps  []int `json:"completed_steps,omitempty"`
	ProgressPercent int   `json:"progress_percent"`
}

// ChatReply is the agent's answer to a ChatMessage, returned to the caller
// unchanged.
type ChatReply struct {
	Reply         string        `json:"reply"`
	StepInfo      ReplyStepInfo `json:"step_info"`
	SessionStatus ReplyStatus   `json:"session_status"`
}

// StepCompletion is the agent's acknowledgement of a completed step.
type StepCompletion struct {
	Message    string `json:"message"`
	NextStep   int    `json:"next_step"`
	IsFinished bool   `json:"is_finished"`
}

// HistoryMessage is one recorded chat turn. Content stays raw because the
// agent may store multimodal payloads; the local side never interprets it.
type HistoryMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	StepNumber int             `json:"step_number,omitempty"`
	HasImage   bool            `json:"has_image,omitempty"`
}

// ChatHistory is the agent-held transcript of a session. The local record
// keeps no message history; the agent is the sole authority here.
type ChatHistory struct {
	SessionID   string           `json:"session_id"`
	RecipeTitle string           `json:"recipe_title"`
	Messages    []HistoryMessage `json:"messages"`
}

// SessionSummary is the agent's closing report for an ended session.
type SessionSummary struct {
	Message string `json:"message"`
	Summary struct {
		Recipe         string `json:"recipe"`
		CompletedSteps int    `json:"completed_steps"`
		TotalSteps     int    `json:"total_steps"`
		TotalMessages  int    `json:"total_messages"`
	} `json:"summary"`
}

// AgentClient is the outbound contract against the external conversational
// agent. Every call is a bounded synchronous request/response keyed by the
// locally generated session id; the client performs no retries of its own.
//
// Failure mapping:
//   - transport failure (refused connection, timeout) -> ErrAgentUnavailable
//   - application-level error response -> ErrAgentRejected
//   - success response missing a required field -> ErrAgentProtocol
type AgentClient interface {
	// StartSession registers the session and its recipe with the agent.
	StartSession(ctx context.Context, sessionID string, recipe Recipe) (*AgentGreeting, error)

	// SendMessage forwards one user turn and returns the agent's reply.
	SendMessage(ctx context.Context, msg ChatMessage) (*ChatReply, error)

	// CompleteStep reports a finished step to the agent.
	CompleteStep(ctx context.Context, sessionID string, stepNumber int) (*StepCompletion, error)

	// FetchHistory returns the agent-held transcript.
	FetchHistory(ctx context.Context, sessionID string) (*ChatHistory, error)

	// EndSession tears the agent-side session down.
	EndSession(ctx context.Context, sessionID string) (*SessionSummary, error)
}
