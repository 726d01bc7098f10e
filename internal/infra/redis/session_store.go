package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

// releaseScript deletes the active marker only if it still names our session.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions own timers and a mutex, so they stay in a local map.
//   - Redis holds one marker per conversation (SET NX with TTL) which makes
//     "one active quiz per conversation" hold across service instances.
//   - The marker TTL bounds how long a crashed instance can block a conversation;
//     it is stretched to the quiz's full running time when that is longer.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  app.Scheduler
	grace  time.Duration

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, clock app.Scheduler, grace time.Duration) *SessionStore {
	if clock == nil {
		clock = app.SystemScheduler{}
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		clock:    clock,
		grace:    grace,
		sessions: make(map[string]*app.Session),
	}
}

// Create claims the conversation in Redis without holding the store lock, so
// lookups for other conversations are not stalled by the round trip.
func (s *SessionStore) Create(ctx context.Context, conversationID, adminID string, quiz domain.QuizDefinition) (*app.Session, error) {
	if s.liveLocal(conversationID) {
		return nil, domain.ErrAlreadyActive
	}

	session := app.NewSession(conversationID, adminID, quiz, s.clock.Now())
	ok, err := s.client.SetNX(ctx, s.key(conversationID), session.ID(), s.markerTTL(quiz)).Result()
	if err != nil {
		return nil, fmt.Errorf("claim conversation: %w", err)
	}
	if !ok {
		return nil, domain.ErrAlreadyActive
	}

	s.mu.Lock()
	if existing, ok := s.sessions[conversationID]; ok && existing.Status() != domain.StatusCompleted {
		s.mu.Unlock()
		// a local session outlived its marker; give the claim back
		s.unmark(conversationID, session)
		return nil, domain.ErrAlreadyActive
	}
	s.sessions[conversationID] = session
	s.mu.Unlock()
	return session, nil
}

func (s *SessionStore) liveLocal(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing, ok := s.sessions[conversationID]
	return ok && existing.Status() != domain.StatusCompleted
}

// markerTTL covers the longest the quiz can run: every question plus its
// intermission, and the grace window. The configured TTL is the floor.
func (s *SessionStore) markerTTL(quiz domain.QuizDefinition) time.Duration {
	n := time.Duration(len(quiz.Questions))
	ttl := n*(quiz.Settings.QuestionTime+quiz.Settings.IntermissionTime) + s.grace
	if ttl < s.ttl {
		return s.ttl
	}
	return ttl
}

func (s *SessionStore) Get(conversationID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[conversationID]
	return session, ok
}

func (s *SessionStore) Remove(conversationID string) {
	s.mu.Lock()
	session, ok := s.sessions[conversationID]
	delete(s.sessions, conversationID)
	s.mu.Unlock()
	if ok {
		s.unmark(conversationID, session)
	}
}

// Release frees the conversation right away so a new quiz can start, and
// keeps the finished session readable locally for the grace window.
func (s *SessionStore) Release(conversationID string, session *app.Session) {
	s.unmark(conversationID, session)
	if s.grace <= 0 {
		s.evict(conversationID, session)
		return
	}
	s.clock.AfterFunc(s.grace, func() { s.evict(conversationID, session) })
}

// Active reports whether any instance holds a live quiz for the conversation.
func (s *SessionStore) Active(ctx context.Context, conversationID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(conversationID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SessionStore) evict(conversationID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.sessions[conversationID]; ok && current == session {
		delete(s.sessions, conversationID)
	}
}

func (s *SessionStore) unmark(conversationID string, session *app.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// best-effort; the TTL cleans up if this fails
	_ = releaseScript.Run(ctx, s.client, []string{s.key(conversationID)}, session.ID()).Err()
}

func (s *SessionStore) key(conversationID string) string {
	return "quiz:conversation:" + conversationID + ":active"
}
