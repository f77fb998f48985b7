// Package core provides the foundational domain types and interfaces for
// souschef. It defines the core abstractions for:
//
//   - Sessions (the authoritative record of one guided cooking interaction)
//   - Recipes (the typed step schema crossing the service boundary)
//   - The SessionStore persistence contract
//   - The AgentClient contract against the external conversational agent
//   - Job progress events relayed to waiting clients
//   - The shared error taxonomy
//
// The package intentionally keeps implementation concerns (persistence,
// transport, orchestration) out of scope, exposing small interfaces so that
// backends can be swapped without touching calling code. Authority over
// session data is split between the two services: the local record owns
// identity, ownership, totals and completed-step bookkeeping, while the
// external agent owns message content and the live step position.
package core
