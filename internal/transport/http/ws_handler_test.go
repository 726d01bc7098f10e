package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trivia-service/internal/app"
	"trivia-service/internal/app/apptest"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/memory"
)

type testServer struct {
	server *httptest.Server
	clock  *apptest.FakeScheduler
	hub    *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := apptest.NewFakeScheduler(time.Unix(1_700_000_000, 0))
	hub := NewHub(nil)
	store := memory.NewSessionStore(clock, time.Minute)
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuiz()), time.Minute)
	access := memory.NewStaticAccessControl(nil)
	access.Grant("chat-1", "alice")
	engine := app.NewEngine(store, quizRepo, access, hub, app.Options{
		Defaults: domain.Settings{QuestionTime: 10 * time.Second, IntermissionTime: 5 * time.Second},
		Clock:    clock,
	})

	server := httptest.NewServer(NewRouter(RouterConfig{Engine: engine, Hub: hub}))
	t.Cleanup(server.Close)
	return &testServer{server: server, clock: clock, hub: hub}
}

func (s *testServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	u := "ws" + s.server.URL[len("http"):] + "/ws?conversationId=chat-1&userId=" + userID + "&name=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s *testServer) waitForRoom(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.hub.RoomSize("chat-1") != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, got %d", n, s.hub.RoomSize("chat-1"))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketQuizFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.dial(t, "alice")
	bob := s.dial(t, "bob")
	s.waitForRoom(t, 2)

	send(t, alice, "start", map[string]any{"quizId": "quiz-1"})
	question := readUntil(t, alice, "question")
	if question["index"].(float64) != 0 || question["messageId"] == "" {
		t.Fatalf("unexpected question payload: %v", question)
	}
	readUntil(t, bob, "question")

	send(t, bob, "answer", map[string]any{"questionIndex": 0, "answerIndex": 1})
	result := readUntil(t, bob, "answerResult")
	if result["correct"] != true || result["awarded"].(float64) != 2 {
		t.Fatalf("unexpected answer result: %v", result)
	}

	send(t, bob, "answer", map[string]any{"questionIndex": 0, "answerIndex": 2})
	rejected := readUntil(t, bob, "answerRejected")
	if rejected["reason"] != domain.ErrDuplicateAnswer.Error() {
		t.Fatalf("unexpected rejection: %v", rejected)
	}

	s.clock.Advance(10 * time.Second)
	closed := readUntil(t, alice, "answeringClosed")
	if closed["messageId"] != question["messageId"] {
		t.Fatalf("closed a different message: %v", closed)
	}
	results := readUntil(t, alice, "results")
	if results["firstCorrectUserId"] != "bob" {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestWebSocketRejectsNonAdminStart(t *testing.T) {
	s := newTestServer(t)
	bob := s.dial(t, "bob")
	s.waitForRoom(t, 1)

	send(t, bob, "start", map[string]any{"quizId": "quiz-1"})
	msg := readUntil(t, bob, "error")
	if msg["message"] != domain.ErrNotAdmin.Error() {
		t.Fatalf("unexpected error: %v", msg)
	}

	send(t, bob, "dance", nil)
	if msg := readUntil(t, bob, "error"); msg["message"] != "unsupported message type" {
		t.Fatalf("unexpected error: %v", msg)
	}
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.server.URL + "/ws?conversationId=chat-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestReadAPI(t *testing.T) {
	s := newTestServer(t)

	if code := getStatus(t, s.server.URL+"/conversations/chat-1/session"); code != http.StatusNotFound {
		t.Fatalf("expected 404 before start, got %d", code)
	}

	if code := post(t, s.server.URL+"/conversations/chat-1/quiz", "bob", `{"quizId":"quiz-1"}`); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", code)
	}
	if code := post(t, s.server.URL+"/conversations/chat-1/quiz", "alice", `{"quizId":"missing"}`); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown quiz, got %d", code)
	}
	if code := post(t, s.server.URL+"/conversations/chat-1/quiz", "alice", `{"quizId":"quiz-1"}`); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if code := post(t, s.server.URL+"/conversations/chat-1/quiz", "alice", `{"quizId":"quiz-1"}`); code != http.StatusConflict {
		t.Fatalf("expected 409 for second quiz, got %d", code)
	}

	var snapshot domain.SessionSnapshot
	getJSON(t, s.server.URL+"/conversations/chat-1/session", &snapshot)
	if snapshot.Status != domain.StatusRunning || snapshot.TotalQuestions != 1 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	var live domain.LeaderboardReport
	getJSON(t, s.server.URL+"/conversations/chat-1/leaderboard", &live)
	if live.SessionID != snapshot.SessionID || len(live.Entries) != 0 {
		t.Fatalf("unexpected live leaderboard: %+v", live)
	}

	if code := post(t, s.server.URL+"/conversations/chat-1/quiz/end", "alice", ""); code != http.StatusOK {
		t.Fatalf("expected 200 on end, got %d", code)
	}
	var final domain.LeaderboardReport
	getJSON(t, s.server.URL+"/conversations/chat-1/leaderboard", &final)
	if !final.EndedEarly {
		t.Fatalf("expected final report, got %+v", final)
	}

	if code := getStatus(t, s.server.URL+"/conversations/chat-1/history"); code != http.StatusNotFound {
		t.Fatalf("expected 404 without history store, got %d", code)
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips messages until one of type expect arrives.
func readUntil(t *testing.T, conn *websocket.Conn, expect string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", expect, err)
		}
		if msg.Type == expect {
			return msg.Payload
		}
	}
	t.Fatalf("no %s message received", expect)
	return nil
}

func getStatus(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func post(t *testing.T, url, userID, body string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(userHeader, userID)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func sampleQuiz() map[string]domain.QuizDefinition {
	return map[string]domain.QuizDefinition{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Arithmetic",
			Questions: []domain.Question{
				{
					Text:          "What is 2 + 2?",
					Options:       []string{"3", "4", "5", "22"},
					CorrectAnswer: 1,
				},
			},
		},
	}
}
