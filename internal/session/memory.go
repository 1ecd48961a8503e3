package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps handshake state in process memory. Entries are swept
// lazily on access, so an expired session reads as not found.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*LoginSession
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryStore{
		sessions: make(map[string]*LoginSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context) (string, error) {
	id, err := NewID()
	if err != nil {
		return "", err
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
	s.sessions[id] = &LoginSession{
		SessionID: id,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	return id, nil
}

func (s *MemoryStore) Complete(_ context.Context, sessionID, token, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveLocked(sessionID)
	if !ok {
		return ErrNotFound
	}
	if sess.Status != StatusPending {
		return ErrAlreadyTerminal
	}
	sess.Status = StatusCompleted
	sess.Token = token
	sess.Username = username
	return nil
}

func (s *MemoryStore) Fail(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveLocked(sessionID)
	if !ok {
		return ErrNotFound
	}
	if sess.Status != StatusPending {
		return ErrAlreadyTerminal
	}
	sess.Status = StatusError
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*LoginSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveLocked(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	out := *sess
	return &out, nil
}

func (s *MemoryStore) liveLocked(sessionID string) (*LoginSession, bool) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, sessionID)
		return nil, false
	}
	return sess, true
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}
