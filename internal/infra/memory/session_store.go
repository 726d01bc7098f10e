package memory

import (
	"context"
	"sync"
	"time"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	clock app.Scheduler
	grace time.Duration

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

// NewSessionStore keeps completed sessions readable for grace before evicting them.
func NewSessionStore(clock app.Scheduler, grace time.Duration) *SessionStore {
	if clock == nil {
		clock = app.SystemScheduler{}
	}
	return &SessionStore{
		clock:    clock,
		grace:    grace,
		sessions: make(map[string]*app.Session),
	}
}

// Create stores a new session unless a non-completed one exists. The check
// and the insert happen under the same lock.
func (s *SessionStore) Create(_ context.Context, conversationID, adminID string, quiz domain.QuizDefinition) (*app.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[conversationID]; ok && existing.Status() != domain.StatusCompleted {
		return nil, domain.ErrAlreadyActive
	}
	session := app.NewSession(conversationID, adminID, quiz, s.clock.Now())
	s.sessions[conversationID] = session
	return session, nil
}

func (s *SessionStore) Get(conversationID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[conversationID]
	return session, ok
}

func (s *SessionStore) Remove(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, conversationID)
}

// Release evicts session after the grace window, unless a newer session took
// its place in the meantime.
func (s *SessionStore) Release(conversationID string, session *app.Session) {
	if s.grace <= 0 {
		s.evict(conversationID, session)
		return
	}
	s.clock.AfterFunc(s.grace, func() { s.evict(conversationID, session) })
}

func (s *SessionStore) evict(conversationID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.sessions[conversationID]; ok && current == session {
		delete(s.sessions, conversationID)
	}
}

// Len reports how many sessions are held, completed ones included.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
