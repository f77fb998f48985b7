package core

import "errors"

var (
	// ErrNotFound is returned when no session exists for the given session id.
	ErrNotFound = errors.New("session not found")

	// ErrForbidden is returned when an authenticated principal is not the
	// owner of the session it tries to act on.
	ErrForbidden = errors.New("principal is not the session owner")

	// ErrSessionClosed is returned by mutating operations on a session in a
	// terminal state (FINISHED or EXPIRED). Reads remain permitted.
	ErrSessionClosed = errors.New("session is closed")

	// ErrInvalidStep is returned when a step number falls outside
	// [1, totalSteps].
	ErrInvalidStep = errors.New("step number out of range")

	// ErrConflict is returned when a session id already exists in the store.
	// The orchestrator generates ids itself, so a collision indicates a
	// generator bug and is fatal for the request, never retried.
	ErrConflict = errors.New("session id already exists")

	// ErrAuthentication is returned when a principal token cannot be
	// resolved to a known owner.
	ErrAuthentication = errors.New("authentication failed")

	// ErrInvalidRecipe is returned when a recipe payload is missing or
	// malformed at the boundary.
	ErrInvalidRecipe = errors.New("invalid recipe payload")

	// ErrAgentUnavailable is returned on transport-level failures talking to
	// the conversational agent (connection refused, timeout).
	ErrAgentUnavailable = errors.New("agent unavailable")

	// ErrAgentRejected is returned when the agent answered with an
	// application-level error response.
	ErrAgentRejected = errors.New("agent rejected the request")

	// ErrAgentProtocol is returned when an agent response is missing fields
	// the contract requires. Absence of an expected field is never silently
	// swallowed.
	ErrAgentProtocol = errors.New("agent response violates protocol")
)
