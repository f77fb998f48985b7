// Package agent implements the outbound core.AgentClient against the
// external conversational agent's REST API. The client is pure transport and
// contract: it performs no retries (retry policy belongs to the caller), it
// enforces a bounded per-call timeout so a hung agent cannot exhaust the
// worker pool, and it maps every failure to the typed error taxonomy
// (ErrAgentUnavailable, ErrAgentRejected, ErrAgentProtocol).
package agent
