package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trivia-service/internal/domain"
)

// SessionRepository owns the conversation -> session mapping.
type SessionRepository interface {
	// Create atomically checks that the conversation has no live session and
	// stores a new one built from quiz. It fails with domain.ErrAlreadyActive.
	Create(ctx context.Context, conversationID, adminID string, quiz domain.QuizDefinition) (*Session, error)
	Get(conversationID string) (*Session, bool)
	Remove(conversationID string)
	// Release is called once a session completed; the store keeps it
	// readable for a grace window and then evicts it.
	Release(conversationID string, session *Session)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// AccessControl answers whether a user administers a conversation.
type AccessControl interface {
	IsAdmin(ctx context.Context, conversationID, userID string) (bool, error)
}

// Transport renders quiz state into a conversation. Implementations may fail
// transiently; the engine logs failures and carries on.
type Transport interface {
	RenderQuestion(ctx context.Context, conversationID string, question domain.Question, index, total int, deadline time.Duration) (string, error)
	RenderResults(ctx context.Context, conversationID string, result domain.QuestionResult) error
	RenderLeaderboard(ctx context.Context, conversationID string, report domain.LeaderboardReport) error
	DisableAnswering(ctx context.Context, conversationID, messageHandle string) error
	RenderError(ctx context.Context, conversationID, message string) error
}

// EventSink is notified about session lifecycle changes.
type EventSink interface {
	QuizStarted(ctx context.Context, snapshot domain.SessionSnapshot) error
	QuizCompleted(ctx context.Context, report domain.LeaderboardReport) error
}

// Metrics receives engine counters.
type Metrics interface {
	SessionStarted()
	SessionCompleted(reason string)
	AnswerProcessed(outcome string)
	StaleTimerFired(kind string)
	RenderFailed(operation string)
}

const (
	reasonFinished   = "finished"
	reasonEndedEarly = "ended_early"
	reasonFailed     = "failed"
)

// Options configures an Engine. Zero values fall back to sane defaults.
type Options struct {
	Defaults             domain.Settings
	Policy               domain.QuestionPolicy
	CloseWhenAllAnswered bool
	// RenderTimeout bounds every transport or sink call made after a transition.
	RenderTimeout time.Duration
	Clock         Scheduler
	Logger        *zap.Logger
	Metrics       Metrics
	Sinks         []EventSink
}

// Engine drives quiz sessions through their lifecycle.
type Engine struct {
	sessions  SessionRepository
	quizzes   QuizRepository
	access    AccessControl
	transport Transport

	defaults             domain.Settings
	policy               domain.QuestionPolicy
	closeWhenAllAnswered bool
	renderTimeout        time.Duration
	clock                Scheduler
	logger               *zap.Logger
	metrics              Metrics
	sinks                []EventSink
}

func NewEngine(store SessionRepository, quizzes QuizRepository, access AccessControl, transport Transport, opts Options) *Engine {
	e := &Engine{
		sessions:             store,
		quizzes:              quizzes,
		access:               access,
		transport:            transport,
		defaults:             opts.Defaults,
		policy:               opts.Policy,
		closeWhenAllAnswered: opts.CloseWhenAllAnswered,
		renderTimeout:        opts.RenderTimeout,
		clock:                opts.Clock,
		logger:               opts.Logger,
		metrics:              opts.Metrics,
		sinks:                opts.Sinks,
	}
	if e.defaults.QuestionTime <= 0 {
		e.defaults.QuestionTime = 30 * time.Second
	}
	if e.defaults.IntermissionTime <= 0 {
		e.defaults.IntermissionTime = 5 * time.Second
	}
	if e.renderTimeout <= 0 {
		e.renderTimeout = 30 * time.Second
	}
	if e.clock == nil {
		e.clock = SystemScheduler{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.metrics == nil {
		e.metrics = noopMetrics{}
	}
	return e
}

// effect is transport or sink I/O deferred until the session lock is released.
type effect func(ctx context.Context)

func (e *Engine) run(effects []effect) {
	if len(effects) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.renderTimeout)
	defer cancel()
	for _, f := range effects {
		f(ctx)
	}
}

// StartQuiz creates a session for the conversation and posts the first question.
func (e *Engine) StartQuiz(ctx context.Context, conversationID, adminID, quizID string) (domain.SessionSnapshot, error) {
	if err := e.authorize(ctx, conversationID, adminID); err != nil {
		return domain.SessionSnapshot{}, err
	}

	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	quiz = e.withDefaults(quiz)
	if err := quiz.Validate(e.policy); err != nil {
		return domain.SessionSnapshot{}, err
	}

	session, err := e.sessions.Create(ctx, conversationID, adminID, quiz)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	e.metrics.SessionStarted()
	e.logger.Info("quiz started",
		zap.String("conversation_id", conversationID),
		zap.String("session_id", session.ID()),
		zap.String("quiz_id", quiz.ID),
		zap.Int("questions", len(quiz.Questions)),
	)

	session.mu.Lock()
	snapshot := session.snapshotLocked()
	effects := e.advanceLocked(session)
	if started := e.startedEffect(snapshot); started != nil {
		if session.status == domain.StatusCompleted {
			// completion effects start with the release of the conversation
			effects = append([]effect{effects[0], started}, effects[1:]...)
		} else {
			effects = append(effects, started)
		}
	}
	session.mu.Unlock()
	e.run(effects)

	return session.Snapshot(), nil
}

// SubmitAnswer scores an answer for the question at questionIndex.
func (e *Engine) SubmitAnswer(_ context.Context, conversationID string, questionIndex int, userID, displayName string, answerIndex int) (domain.AnswerOutcome, error) {
	session, ok := e.sessions.Get(conversationID)
	if !ok {
		e.metrics.AnswerProcessed("no_session")
		return domain.AnswerOutcome{}, domain.ErrSessionNotFound
	}

	session.mu.Lock()
	outcome, err := submitAnswerLocked(session, questionIndex, userID, displayName, answerIndex, e.clock.Now())
	var effects []effect
	if err == nil && e.closeWhenAllAnswered && session.allExpectedAnsweredLocked() {
		effects = e.closeQuestionLocked(session, questionIndex)
	}
	session.mu.Unlock()

	e.metrics.AnswerProcessed(answerLabel(outcome, err))
	if err != nil {
		e.logger.Debug("answer rejected",
			zap.String("conversation_id", conversationID),
			zap.String("user_id", userID),
			zap.Int("question_index", questionIndex),
			zap.Error(err),
		)
		return domain.AnswerOutcome{}, err
	}
	e.run(effects)
	return outcome, nil
}

// EndEarly force-completes a session. Calling it on a completed session
// returns the existing report with domain.ErrSessionCompleted.
func (e *Engine) EndEarly(ctx context.Context, conversationID, adminID string) (domain.LeaderboardReport, error) {
	if err := e.authorize(ctx, conversationID, adminID); err != nil {
		return domain.LeaderboardReport{}, err
	}
	session, ok := e.sessions.Get(conversationID)
	if !ok {
		return domain.LeaderboardReport{}, domain.ErrSessionNotFound
	}

	session.mu.Lock()
	if session.status == domain.StatusCompleted {
		var report domain.LeaderboardReport
		if session.report != nil {
			report = *session.report
		}
		session.mu.Unlock()
		return report, domain.ErrSessionCompleted
	}
	session.endedEarly = true
	effects := e.completeLocked(session, reasonEndedEarly)
	report := *session.report
	session.mu.Unlock()

	e.logger.Info("quiz ended early",
		zap.String("conversation_id", conversationID),
		zap.String("session_id", session.ID()),
		zap.String("admin_id", adminID),
	)
	e.run(effects)
	return report, nil
}

// Snapshot returns a copy of the conversation's session, including one that
// completed within the store's grace window.
func (e *Engine) Snapshot(conversationID string) (domain.SessionSnapshot, error) {
	session, ok := e.sessions.Get(conversationID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

func (e *Engine) authorize(ctx context.Context, conversationID, userID string) error {
	ok, err := e.access.IsAdmin(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if !ok {
		return domain.ErrNotAdmin
	}
	return nil
}

func (e *Engine) withDefaults(quiz domain.QuizDefinition) domain.QuizDefinition {
	if quiz.Settings.QuestionTime == 0 {
		quiz.Settings.QuestionTime = e.defaults.QuestionTime
	}
	if quiz.Settings.IntermissionTime == 0 {
		quiz.Settings.IntermissionTime = e.defaults.IntermissionTime
	}
	return quiz
}

// advanceLocked moves to the next question or completes the session when
// none are left. Only valid from Setup or Intermission.
func (e *Engine) advanceLocked(s *Session) []effect {
	if s.status != domain.StatusSetup && s.status != domain.StatusIntermission {
		return nil
	}
	s.cancelTimerLocked()
	s.currentIndex++
	if s.currentIndex >= len(s.questions) {
		return e.completeLocked(s, reasonFinished)
	}

	index := s.currentIndex
	question := s.questions[index].question
	if err := question.Validate(); err != nil {
		return e.failLocked(s, fmt.Errorf("%w: question %d: %v", domain.ErrInvalidQuiz, index+1, err))
	}

	s.status = domain.StatusRunning
	s.resetExpectedLocked()
	s.armLocked(e.clock, s.settings.QuestionTime, func(gen uint64) {
		e.onQuestionTimeout(s, index, gen)
	})

	conversationID := s.conversationID
	total := len(s.questions)
	deadline := s.settings.QuestionTime
	return []effect{func(ctx context.Context) {
		handle, err := e.transport.RenderQuestion(ctx, conversationID, question, index, total, deadline)
		if err != nil {
			e.renderFailed("render_question", conversationID, index, err)
			return
		}
		s.mu.Lock()
		s.questions[index].messageHandle = handle
		closed := s.questions[index].locked || s.status == domain.StatusCompleted
		s.mu.Unlock()
		// The question may have closed while the render was in flight.
		if closed && handle != "" {
			e.disableAnswering(ctx, conversationID, index, handle)
		}
	}}
}

// onQuestionTimeout is the deadline callback for the question at expectedIndex.
func (e *Engine) onQuestionTimeout(s *Session, expectedIndex int, gen uint64) {
	s.mu.Lock()
	if s.status != domain.StatusRunning || s.currentIndex != expectedIndex || !s.firedLocked(gen) {
		s.mu.Unlock()
		e.staleTimer(s, timerQuestion, expectedIndex)
		return
	}
	effects := e.closeQuestionLocked(s, expectedIndex)
	s.mu.Unlock()
	e.run(effects)
}

// closeQuestionLocked locks the current question, arms the intermission timer
// and returns the result rendering.
func (e *Engine) closeQuestionLocked(s *Session, index int) []effect {
	if s.status != domain.StatusRunning || s.currentIndex != index {
		return nil
	}
	s.status = domain.StatusIntermission
	s.questions[index].locked = true
	result := s.questionResultLocked(index)
	handle := s.questions[index].messageHandle

	s.armLocked(e.clock, s.settings.IntermissionTime, func(gen uint64) {
		e.onIntermissionEnd(s, index, gen)
	})

	conversationID := s.conversationID
	return []effect{func(ctx context.Context) {
		if handle != "" {
			e.disableAnswering(ctx, conversationID, index, handle)
		}
		if err := e.transport.RenderResults(ctx, conversationID, result); err != nil {
			e.renderFailed("render_results", conversationID, index, err)
		}
	}}
}

func (e *Engine) onIntermissionEnd(s *Session, expectedIndex int, gen uint64) {
	s.mu.Lock()
	if s.status != domain.StatusIntermission || s.currentIndex != expectedIndex || !s.firedLocked(gen) {
		s.mu.Unlock()
		e.staleTimer(s, timerIntermission, expectedIndex)
		return
	}
	effects := e.advanceLocked(s)
	s.mu.Unlock()
	e.run(effects)
}

// completeLocked flips the session to Completed before touching the timer,
// so any callback still in flight observes the terminal state.
func (e *Engine) completeLocked(s *Session, reason string) []effect {
	s.status = domain.StatusCompleted
	s.cancelTimerLocked()
	s.endedAt = e.clock.Now()
	report := Finalize(s.reportInputLocked())
	s.report = &report

	var openHandle string
	openIndex := s.currentIndex
	if openIndex >= 0 && openIndex < len(s.questions) && !s.questions[openIndex].locked {
		openHandle = s.questions[openIndex].messageHandle
	}

	conversationID := s.conversationID
	e.metrics.SessionCompleted(reason)
	e.logger.Info("quiz completed",
		zap.String("conversation_id", conversationID),
		zap.String("session_id", s.id),
		zap.String("reason", reason),
		zap.Int("participants", report.ParticipantCount),
	)

	// Release comes first: a new quiz may start while the leaderboard is
	// still being posted.
	release := effect(func(context.Context) {
		e.sessions.Release(conversationID, s)
	})
	return []effect{release, func(ctx context.Context) {
		if openHandle != "" {
			e.disableAnswering(ctx, conversationID, openIndex, openHandle)
		}
		if err := e.transport.RenderLeaderboard(ctx, conversationID, report); err != nil {
			e.renderFailed("render_leaderboard", conversationID, openIndex, err)
		}
		for _, sink := range e.sinks {
			if err := sink.QuizCompleted(ctx, report); err != nil {
				e.logger.Warn("event sink failed",
					zap.String("conversation_id", conversationID),
					zap.String("event", "quiz_completed"),
					zap.Error(err),
				)
			}
		}
	}}
}

// failLocked ends a session that hit a data error; other sessions are unaffected.
func (e *Engine) failLocked(s *Session, cause error) []effect {
	e.logger.Error("quiz session failed",
		zap.String("conversation_id", s.conversationID),
		zap.String("session_id", s.id),
		zap.Error(cause),
	)
	s.endedEarly = true
	conversationID := s.conversationID
	notice := effect(func(ctx context.Context) {
		if err := e.transport.RenderError(ctx, conversationID, "The quiz was stopped: "+cause.Error()); err != nil {
			e.renderFailed("render_error", conversationID, -1, err)
		}
	})
	effects := e.completeLocked(s, reasonFailed)
	return append([]effect{effects[0], notice}, effects[1:]...)
}

// startedEffect hands the new session to the sinks. It runs after the first
// question is posted, or ahead of the completion rendering when the session
// ended on its first transition.
func (e *Engine) startedEffect(snapshot domain.SessionSnapshot) effect {
	if len(e.sinks) == 0 {
		return nil
	}
	return func(ctx context.Context) {
		for _, sink := range e.sinks {
			if err := sink.QuizStarted(ctx, snapshot); err != nil {
				e.logger.Warn("event sink failed",
					zap.String("conversation_id", snapshot.ConversationID),
					zap.String("event", "quiz_started"),
					zap.Error(err),
				)
			}
		}
	}
}

func (e *Engine) disableAnswering(ctx context.Context, conversationID string, index int, handle string) {
	if err := e.transport.DisableAnswering(ctx, conversationID, handle); err != nil {
		e.renderFailed("disable_answering", conversationID, index, err)
	}
}

func (e *Engine) renderFailed(op, conversationID string, index int, err error) {
	e.metrics.RenderFailed(op)
	e.logger.Warn("transport call failed",
		zap.String("operation", op),
		zap.String("conversation_id", conversationID),
		zap.Int("question_index", index),
		zap.Error(err),
	)
}

func (e *Engine) staleTimer(s *Session, kind timerKind, index int) {
	e.metrics.StaleTimerFired(string(kind))
	e.logger.Debug("stale timer ignored",
		zap.String("conversation_id", s.conversationID),
		zap.String("session_id", s.id),
		zap.String("timer", string(kind)),
		zap.Int("question_index", index),
	)
}

func answerLabel(outcome domain.AnswerOutcome, err error) string {
	switch {
	case err == nil && outcome.IsCorrect:
		return "correct"
	case err == nil:
		return "incorrect"
	case err == domain.ErrDuplicateAnswer:
		return "duplicate"
	case err == domain.ErrQuestionLocked:
		return "locked"
	case err == domain.ErrNoActiveQuestion:
		return "no_active_question"
	case err == domain.ErrInvalidOption:
		return "invalid_option"
	default:
		return "error"
	}
}

type noopMetrics struct{}

func (noopMetrics) SessionStarted()         {}
func (noopMetrics) SessionCompleted(string) {}
func (noopMetrics) AnswerProcessed(string)  {}
func (noopMetrics) StaleTimerFired(string)  {}
func (noopMetrics) RenderFailed(string)     {}
