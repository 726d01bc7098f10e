package resilient

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-service/internal/app/apptest"
	"trivia-service/internal/domain"
)

// flakyTransport fails the first failures calls of every operation.
type flakyTransport struct {
	*apptest.RecordingTransport
	failures int
	attempts map[string]int
}

func newFlaky(failures int) *flakyTransport {
	return &flakyTransport{
		RecordingTransport: apptest.NewRecordingTransport(),
		failures:           failures,
		attempts:           make(map[string]int),
	}
}

var errUnavailable = errors.New("chat api unavailable")

func (f *flakyTransport) attempt(op string) error {
	f.attempts[op]++
	if f.attempts[op] <= f.failures {
		return errUnavailable
	}
	return nil
}

func (f *flakyTransport) RenderQuestion(ctx context.Context, conversationID string, q domain.Question, index, total int, deadline time.Duration) (string, error) {
	if err := f.attempt("question"); err != nil {
		return "", err
	}
	return f.RecordingTransport.RenderQuestion(ctx, conversationID, q, index, total, deadline)
}

func (f *flakyTransport) RenderResults(ctx context.Context, conversationID string, result domain.QuestionResult) error {
	if err := f.attempt("results"); err != nil {
		return err
	}
	return f.RecordingTransport.RenderResults(ctx, conversationID, result)
}

func fastConfig(retries uint64) Config {
	return Config{MaxRetries: retries, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetriesUntilSuccess(t *testing.T) {
	flaky := newFlaky(2)
	tr := New(flaky, fastConfig(3), nil)

	handle, err := tr.RenderQuestion(context.Background(), "chat-1", domain.Question{Text: "Q?"}, 0, 1, time.Second)
	if err != nil {
		t.Fatalf("render question: %v", err)
	}
	if handle == "" {
		t.Fatalf("expected message handle from the successful attempt")
	}
	if flaky.attempts["question"] != 3 {
		t.Fatalf("expected 3 attempts, got %d", flaky.attempts["question"])
	}
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	flaky := newFlaky(10)
	tr := New(flaky, fastConfig(2), nil)

	err := tr.RenderResults(context.Background(), "chat-1", domain.QuestionResult{})
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("expected last error returned, got %v", err)
	}
	if flaky.attempts["results"] != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d", flaky.attempts["results"])
	}
}

func TestStopsWhenContextDone(t *testing.T) {
	flaky := newFlaky(100)
	tr := New(flaky, Config{MaxRetries: 100, InitialInterval: time.Hour, MaxInterval: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := tr.RenderResults(ctx, "chat-1", domain.QuestionResult{}); err == nil {
		t.Fatalf("expected error")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("retry ignored the context deadline")
	}
}

func TestPassesThroughOtherOperations(t *testing.T) {
	rec := apptest.NewRecordingTransport()
	tr := New(rec, fastConfig(1), nil)
	ctx := context.Background()

	_ = tr.DisableAnswering(ctx, "chat-1", "msg-1")
	_ = tr.RenderLeaderboard(ctx, "chat-1", domain.LeaderboardReport{})
	_ = tr.RenderError(ctx, "chat-1", "boom")

	want := []string{"disable", "leaderboard", "error"}
	got := rec.Ops()
	if len(got) != len(want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ops = %v, want %v", got, want)
		}
	}
}
