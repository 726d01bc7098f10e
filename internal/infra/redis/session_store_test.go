package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"trivia-service/internal/app/apptest"
	"trivia-service/internal/domain"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	clock := apptest.NewFakeScheduler(time.Unix(0, 0))
	store := NewSessionStore(newClient(mr), time.Hour, clock, time.Minute)

	session, err := store.Create(context.Background(), "chat-1", "admin", apptest.Quiz("quiz-1", 1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	key := "quiz:conversation:chat-1:active"
	if got, _ := mr.Get(key); got != session.ID() {
		t.Fatalf("expected marker %q, got %q", session.ID(), got)
	}
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Fatalf("expected marker ttl, got %v", ttl)
	}

	store.Release("chat-1", session)
	if mr.Exists(key) {
		t.Fatalf("expected marker to be removed on release")
	}
	if _, ok := store.Get("chat-1"); !ok {
		t.Fatalf("expected session readable during grace")
	}
	clock.Advance(time.Minute)
	if _, ok := store.Get("chat-1"); ok {
		t.Fatalf("expected session evicted after grace")
	}
}

func TestSessionStoreRejectsConversationClaimedElsewhere(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	// Two instances sharing one Redis.
	first := NewSessionStore(newClient(mr), time.Hour, nil, time.Minute)
	second := NewSessionStore(newClient(mr), time.Hour, nil, time.Minute)

	if _, err := first.Create(context.Background(), "chat-1", "admin", apptest.Quiz("quiz-1", 1)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := second.Create(context.Background(), "chat-1", "admin", apptest.Quiz("quiz-1", 1)); err != domain.ErrAlreadyActive {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	active, err := second.Active(context.Background(), "chat-1")
	if err != nil || !active {
		t.Fatalf("expected conversation active, got %v %v", active, err)
	}

	first.Remove("chat-1")
	if _, err := second.Create(context.Background(), "chat-1", "admin", apptest.Quiz("quiz-1", 1)); err != nil {
		t.Fatalf("expected claim after remove, got %v", err)
	}
}

func TestSessionStoreReleaseKeepsNewerMarker(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Hour, nil, 0)
	old, err := store.Create(context.Background(), "chat-1", "admin", apptest.Quiz("quiz-1", 1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	store.Release("chat-1", old)

	fresh, err := store.Create(context.Background(), "chat-1", "admin", apptest.Quiz("quiz-1", 1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// A late release of the old session must not free the new claim.
	store.Release("chat-1", old)
	if got, _ := mr.Get("quiz:conversation:chat-1:active"); got != fresh.ID() {
		t.Fatalf("expected fresh marker to survive, got %q", got)
	}
	if current, ok := store.Get("chat-1"); !ok || current != fresh {
		t.Fatalf("expected fresh session kept")
	}
}
