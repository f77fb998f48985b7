package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/souschef-ai/souschef/core"
)

// InMemoryStore is a volatile SessionStore implementation storing sessions in
// a process local map. It is safe for concurrent access and best suited for
// tests or single-node deployments without a database. Each returned session
// is cloned to prevent external mutation of internal state, and Save applies
// last-writer-wins upsert semantics keyed by session id.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create inserts a new session, enforcing session id uniqueness.
func (s *InMemoryStore) Create(_ context.Context, sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.SessionID]; exists {
		return core.ErrConflict
	}
	s.sessions[sess.SessionID] = sess.Clone()
	return nil
}

// GetBySessionID returns a clone of the stored session or core.ErrNotFound.
func (s *InMemoryStore) GetBySessionID(_ context.Context, sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return sess.Clone(), nil
}

// FindActiveByOwner returns clones of the owner's ACTIVE sessions.
func (s *InMemoryStore) FindActiveByOwner(_ context.Context, ownerID string) ([]*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*core.Session
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID && sess.Status == core.StatusActive {
			res = append(res, sess.Clone())
		}
	}
	return res, nil
}

// FindByOwner returns clones of all of the owner's sessions, most recently
// used first.
func (s *InMemoryStore) FindByOwner(_ context.Context, ownerID string) ([]*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*core.Session
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID {
			res = append(res, sess.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].LastUsedAt.After(res[j].LastUsedAt) })
	return res, nil
}

// FindIdleBefore returns clones of sessions in the given status last used
// before the cutoff.
func (s *InMemoryStore) FindIdleBefore(_ context.Context, status core.Status, cutoff time.Time) ([]*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*core.Session
	for _, sess := range s.sessions {
		if sess.Status == status && sess.LastUsedAt.Before(cutoff) {
			res = append(res, sess.Clone())
		}
	}
	return res, nil
}

// Save upserts a clone of the provided session snapshot (last writer wins).
func (s *InMemoryStore) Save(_ context.Context, sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = sess.Clone()
	return nil
}

// Delete removes the session if present. Deleting an unknown id is a no-op.
func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
