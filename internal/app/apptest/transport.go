package apptest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trivia-service/internal/domain"
)

// Call is one recorded Transport invocation.
type Call struct {
	Op             string
	ConversationID string
	Index          int
	Handle         string
	Result         domain.QuestionResult
	Report         domain.LeaderboardReport
	Message        string
}

// RecordingTransport records every call. Fail makes the named operation
// return an error.
type RecordingTransport struct {
	mu      sync.Mutex
	calls   []Call
	fail    map[string]error
	handles int
}

func NewRecordingTransport() *RecordingTransport {
	return &RecordingTransport{fail: make(map[string]error)}
}

func (t *RecordingTransport) Fail(op string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail[op] = err
}

func (t *RecordingTransport) record(c Call) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, c)
	return t.fail[c.Op]
}

func (t *RecordingTransport) RenderQuestion(_ context.Context, conversationID string, _ domain.Question, index, _ int, _ time.Duration) (string, error) {
	t.mu.Lock()
	t.handles++
	handle := fmt.Sprintf("msg-%d", t.handles)
	t.mu.Unlock()
	if err := t.record(Call{Op: "question", ConversationID: conversationID, Index: index, Handle: handle}); err != nil {
		return "", err
	}
	return handle, nil
}

func (t *RecordingTransport) RenderResults(_ context.Context, conversationID string, result domain.QuestionResult) error {
	return t.record(Call{Op: "results", ConversationID: conversationID, Index: result.QuestionIndex, Result: result})
}

func (t *RecordingTransport) RenderLeaderboard(_ context.Context, conversationID string, report domain.LeaderboardReport) error {
	return t.record(Call{Op: "leaderboard", ConversationID: conversationID, Report: report})
}

func (t *RecordingTransport) DisableAnswering(_ context.Context, conversationID, handle string) error {
	return t.record(Call{Op: "disable", ConversationID: conversationID, Handle: handle})
}

func (t *RecordingTransport) RenderError(_ context.Context, conversationID, message string) error {
	return t.record(Call{Op: "error", ConversationID: conversationID, Message: message})
}

// Calls returns a copy of the recorded calls.
func (t *RecordingTransport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// Ops returns the operation names in call order.
func (t *RecordingTransport) Ops() []string {
	calls := t.Calls()
	ops := make([]string, len(calls))
	for i, c := range calls {
		ops[i] = c.Op
	}
	return ops
}

// Count returns how many times op was called.
func (t *RecordingTransport) Count(op string) int {
	n := 0
	for _, c := range t.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// AllowAll grants admin rights to everyone.
type AllowAll struct{}

func (AllowAll) IsAdmin(context.Context, string, string) (bool, error) { return true, nil }

// Quiz builds a quiz with n questions whose correct answer is option 1.
func Quiz(id string, n int) domain.QuizDefinition {
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			Text:          fmt.Sprintf("Question %d?", i+1),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: 1,
		}
	}
	return domain.QuizDefinition{ID: id, Title: "Quiz " + id, Questions: questions}
}
