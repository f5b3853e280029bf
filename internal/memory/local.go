package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ragstack/rag-backend/internal/core"
)

type localSession struct {
	turns     []core.ConversationTurn
	expiresAt time.Time
}

// LocalStore is the in-process session store: a keyed map with the same TTL
// and turn-cap semantics as the durable store. Expiry is tied to the last
// write; reads do not refresh it.
type LocalStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxTurns int
	sessions map[string]*localSession
	now      func() time.Time
}

func NewLocalStore(ttl time.Duration, maxTurns int) *LocalStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &LocalStore{
		ttl:      ttl,
		maxTurns: maxTurns,
		sessions: make(map[string]*localSession),
		now:      time.Now,
	}
}

func (s *LocalStore) Append(_ context.Context, sessionID string, turn core.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[sessionID]
	if sess == nil || s.now().After(sess.expiresAt) {
		sess = &localSession{}
		s.sessions[sessionID] = sess
	}
	sess.turns = append(sess.turns, turn)
	if len(sess.turns) > s.maxTurns {
		sess.turns = sess.turns[len(sess.turns)-s.maxTurns:]
	}
	sess.expiresAt = s.now().Add(s.ttl)
	return nil
}

func (s *LocalStore) History(_ context.Context, sessionID string) ([]core.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[sessionID]
	if sess == nil {
		return nil, nil
	}
	if s.now().After(sess.expiresAt) {
		delete(s.sessions, sessionID)
		return nil, nil
	}
	out := make([]core.ConversationTurn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

func (s *LocalStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
