// Package guard enforces multi-tenant isolation for sessions. It resolves a
// verified principal handle to an internal owner id and checks ownership
// before any session state is touched. Every orchestrator operation that
// takes a session id goes through Authorize; there is no shortcut path.
//
// Credential verification is modeled as a capability (Verifier) the guard
// depends on, so the bundled static verifier can be swapped for a real
// identity backend without touching calling code.
package guard

import (
	"context"
	"fmt"
	"sync"

	"github.com/souschef-ai/souschef/core"
)

// User is one known principal.
type User struct {
	OwnerID  string
	Email    string
	Password string
	Nickname string
}

// Verifier resolves principal identities. Implementations must be safe for
// concurrent use and must never mutate session state.
type Verifier interface {
	// ResolveOwner maps a verified principal handle (an email-equivalent
	// token supplied by the authentication collaborator) to an owner id.
	// Unknown principals fail with core.ErrAuthentication.
	ResolveOwner(ctx context.Context, principal string) (string, error)

	// VerifyCredentials checks a login id / password pair and returns the
	// owner id on success, core.ErrAuthentication otherwise.
	VerifyCredentials(ctx context.Context, loginID, password string) (string, error)
}

// StaticVerifier is an in-memory Verifier seeded with a fixed user set. It
// replaces the placeholder global dummy-credential state of earlier
// iterations with an explicit, swappable implementation.
type StaticVerifier struct {
	mu    sync.RWMutex
	users map[string]User // keyed by email
}

// NewStaticVerifier constructs a verifier over the given users.
func NewStaticVerifier(users ...User) *StaticVerifier {
	v := &StaticVerifier{users: make(map[string]User, len(users))}
	for _, u := range users {
		v.users[u.Email] = u
	}
	return v
}

// AddUser registers (or replaces) a user.
func (v *StaticVerifier) AddUser(u User) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.users[u.Email] = u
}

// ResolveOwner maps an email handle to its owner id.
func (v *StaticVerifier) ResolveOwner(_ context.Context, principal string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	u, ok := v.users[principal]
	if !ok {
		return "", fmt.Errorf("%w: unknown principal", core.ErrAuthentication)
	}
	return u.OwnerID, nil
}

// VerifyCredentials checks the login pair against the user set.
func (v *StaticVerifier) VerifyCredentials(_ context.Context, loginID, password string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	u, ok := v.users[loginID]
	if !ok || u.Password != password {
		return "", fmt.Errorf("%w: invalid login credentials", core.ErrAuthentication)
	}
	return u.OwnerID, nil
}

// Guard couples identity resolution with ownership checks.
type Guard struct {
	verifier Verifier
}

// New constructs a Guard over the given verifier.
func New(verifier Verifier) *Guard {
	return &Guard{verifier: verifier}
}

// ResolveOwner resolves the principal to an owner id via the verifier.
func (g *Guard) ResolveOwner(ctx context.Context, principal string) (string, error) {
	return g.verifier.ResolveOwner(ctx, principal)
}

// Login verifies a credential pair and returns the owner id.
func (g *Guard) Login(ctx context.Context, loginID, password string) (string, error) {
	return g.verifier.VerifyCredentials(ctx, loginID, password)
}

// Authorize checks that the owner id matches the session owner. It is a pure
// equality check and never mutates.
func (g *Guard) Authorize(ownerID string, sess *core.Session) error {
	if sess.OwnerID != ownerID {
		return core.ErrForbidden
	}
	return nil
}
