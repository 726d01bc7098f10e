package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.SessionStarted()
	c.SessionStarted()
	c.SessionCompleted("finished")
	c.AnswerProcessed("correct")
	c.AnswerProcessed("correct")
	c.AnswerProcessed("duplicate")
	c.StaleTimerFired("question")
	c.RenderFailed("render_results")

	if got := testutil.ToFloat64(c.activeSessions); got != 1 {
		t.Fatalf("expected one active session, got %v", got)
	}
	if got := testutil.ToFloat64(c.sessionsStarted); got != 2 {
		t.Fatalf("expected two started sessions, got %v", got)
	}
	if got := testutil.ToFloat64(c.answers.WithLabelValues("correct")); got != 2 {
		t.Fatalf("expected two correct answers, got %v", got)
	}
	if got := testutil.ToFloat64(c.sessionsCompleted.WithLabelValues("finished")); got != 1 {
		t.Fatalf("expected one finished session, got %v", got)
	}
	if n := testutil.CollectAndCount(c.renderFailures); n != 1 {
		t.Fatalf("expected one render failure series, got %d", n)
	}
}

func TestCollectorsRegisterOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected duplicate registration to panic")
		}
	}()
	New(reg)
}
