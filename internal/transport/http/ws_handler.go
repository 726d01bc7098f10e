package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trivia-service/internal/domain"
)

// QuizEngine is the subset of app.Engine the HTTP layer drives.
type QuizEngine interface {
	StartQuiz(ctx context.Context, conversationID, adminID, quizID string) (domain.SessionSnapshot, error)
	SubmitAnswer(ctx context.Context, conversationID string, questionIndex int, userID, displayName string, answerIndex int) (domain.AnswerOutcome, error)
	EndEarly(ctx context.Context, conversationID, adminID string) (domain.LeaderboardReport, error)
	Snapshot(conversationID string) (domain.SessionSnapshot, error)
}

type WSHandler struct {
	engine   QuizEngine
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWSHandler accepts connections from allowedOrigins; an empty list allows any origin.
func NewWSHandler(engine QuizEngine, hub *Hub, allowedOrigins []string, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		engine: engine,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	QuizID string `json:"quizId"`
}

type answerPayload struct {
	QuestionIndex int `json:"questionIndex"`
	AnswerIndex   int `json:"answerIndex"`
}

type answerResult struct {
	QuestionIndex int  `json:"questionIndex"`
	Correct       bool `json:"correct"`
	FirstCorrect  bool `json:"firstCorrect"`
	Awarded       int  `json:"awarded"`
	Streak        int  `json:"streak"`
	TotalScore    int  `json:"totalScore"`
}

type rejectedPayload struct {
	QuestionIndex int    `json:"questionIndex"`
	Reason        string `json:"reason"`
}

// ServeWS upgrades HTTP requests to websockets and joins the connection to
// its conversation room.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversationId")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if conversationID == "" || userID == "" || displayName == "" {
		http.Error(w, "missing conversationId, userId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := h.hub.register(conversationID, userID)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	if snapshot, err := h.engine.Snapshot(conversationID); err == nil {
		h.hub.sendTo(c, outboundMessage[any]{Type: "snapshot", Payload: snapshot})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.handle(r.Context(), c, displayName, inbound)
	}

	h.hub.unregister(c)
	<-writerDone
}

func (h *WSHandler) handle(ctx context.Context, c *client, displayName string, inbound inboundMessage) {
	switch inbound.Type {
	case "start":
		var payload startPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuizID == "" {
			h.replyError(c, errors.New("invalid start payload"))
			return
		}
		if _, err := h.engine.StartQuiz(ctx, c.conversationID, c.userID, payload.QuizID); err != nil {
			h.replyError(c, err)
		}
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.replyError(c, errors.New("invalid answer payload"))
			return
		}
		outcome, err := h.engine.SubmitAnswer(ctx, c.conversationID, payload.QuestionIndex, c.userID, displayName, payload.AnswerIndex)
		if domain.IsRejection(err) {
			h.hub.sendTo(c, outboundMessage[any]{Type: "answerRejected", Payload: rejectedPayload{
				QuestionIndex: payload.QuestionIndex,
				Reason:        err.Error(),
			}})
			return
		}
		if err != nil {
			h.replyError(c, err)
			return
		}
		h.hub.sendTo(c, outboundMessage[any]{Type: "answerResult", Payload: answerResult{
			QuestionIndex: outcome.QuestionIndex,
			Correct:       outcome.IsCorrect,
			FirstCorrect:  outcome.IsFirstCorrect,
			Awarded:       outcome.PointsAwarded,
			Streak:        outcome.StreakAfter,
			TotalScore:    outcome.TotalScore,
		}})
	case "end":
		if _, err := h.engine.EndEarly(ctx, c.conversationID, c.userID); err != nil {
			h.replyError(c, err)
		}
	default:
		h.replyError(c, errors.New("unsupported message type"))
	}
}

func (h *WSHandler) replyError(c *client, err error) {
	h.hub.sendTo(c, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
}
