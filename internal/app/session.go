package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia-service/internal/domain"
)

type timerKind string

const (
	timerQuestion     timerKind = "question"
	timerIntermission timerKind = "intermission"
)

// Session is the in-memory state of one quiz running in one conversation.
// Every field is guarded by mu; the Engine is the only writer.
type Session struct {
	id             string
	conversationID string
	adminID        string
	quizID         string
	title          string
	settings       domain.Settings

	mu           sync.Mutex
	status       domain.Status
	currentIndex int
	questions    []questionState
	participants map[string]*domain.Participant
	// expected holds the participants known when the current question was
	// posted; used to close a question once all of them answered.
	expected map[string]struct{}

	timer    Timer
	timerGen uint64

	startedAt  time.Time
	endedAt    time.Time
	endedEarly bool
	report     *domain.LeaderboardReport
}

type questionState struct {
	question      domain.Question
	responses     []domain.Response
	answered      map[string]struct{}
	firstCorrect  string
	locked        bool
	messageHandle string
}

// NewSession builds a session in Setup state. The quiz content is copied so
// later changes to the definition never reach a running session.
func NewSession(conversationID, adminID string, quiz domain.QuizDefinition, startedAt time.Time) *Session {
	questions := make([]questionState, len(quiz.Questions))
	for i, q := range quiz.Questions {
		options := make([]string, len(q.Options))
		copy(options, q.Options)
		questions[i] = questionState{
			question: domain.Question{
				Text:          q.Text,
				Options:       options,
				CorrectAnswer: q.CorrectAnswer,
			},
			answered: make(map[string]struct{}),
		}
	}
	return &Session{
		id:             uuid.NewString(),
		conversationID: conversationID,
		adminID:        adminID,
		quizID:         quiz.ID,
		title:          quiz.Title,
		settings:       quiz.Settings,
		status:         domain.StatusSetup,
		currentIndex:   -1,
		questions:      questions,
		participants:   make(map[string]*domain.Participant),
		expected:       make(map[string]struct{}),
		startedAt:      startedAt,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) ConversationID() string { return s.conversationID }

// Status returns the current lifecycle state.
func (s *Session) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns a deep copy of the session state.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	participants := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		cp := *p
		cp.Responses = append([]domain.Response(nil), p.Responses...)
		participants = append(participants, cp)
	}
	snap := domain.SessionSnapshot{
		SessionID:            s.id,
		ConversationID:       s.conversationID,
		QuizID:               s.quizID,
		QuizTitle:            s.title,
		Status:               s.status,
		CurrentQuestionIndex: s.currentIndex,
		TotalQuestions:       len(s.questions),
		Settings:             s.settings,
		Participants:         participants,
		TimerOutstanding:     s.timer != nil,
		StartedAt:            s.startedAt,
		EndedAt:              s.endedAt,
	}
	if s.report != nil {
		report := *s.report
		snap.Report = &report
	}
	return snap
}

// armLocked schedules fire after d, replacing any outstanding timer. The
// callback receives the generation it was armed with so stale fires can be
// told apart from the live one.
func (s *Session) armLocked(clock Scheduler, d time.Duration, fire func(gen uint64)) {
	s.cancelTimerLocked()
	s.timerGen++
	gen := s.timerGen
	s.timer = clock.AfterFunc(d, func() { fire(gen) })
}

func (s *Session) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	// Bump the generation so a callback that already fired is treated as stale.
	s.timerGen++
}

// firedLocked consumes the outstanding timer if gen is the live generation.
func (s *Session) firedLocked(gen uint64) bool {
	if gen != s.timerGen {
		return false
	}
	s.timer = nil
	return true
}

func (s *Session) allExpectedAnsweredLocked() bool {
	if s.currentIndex <= 0 || s.currentIndex >= len(s.questions) || len(s.expected) == 0 {
		return false
	}
	answered := s.questions[s.currentIndex].answered
	for userID := range s.expected {
		if _, ok := answered[userID]; !ok {
			return false
		}
	}
	return true
}

func (s *Session) resetExpectedLocked() {
	s.expected = make(map[string]struct{}, len(s.participants))
	for userID := range s.participants {
		s.expected[userID] = struct{}{}
	}
}

func (s *Session) participantsLocked() []domain.Participant {
	out := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, *p)
	}
	return out
}

// questionsAskedLocked is how many questions were posted so far.
func (s *Session) questionsAskedLocked() int {
	asked := s.currentIndex + 1
	if asked > len(s.questions) {
		asked = len(s.questions)
	}
	if asked < 0 {
		return 0
	}
	return asked
}
