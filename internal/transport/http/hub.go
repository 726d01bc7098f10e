package http

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trivia-service/internal/domain"
)

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type questionPayload struct {
	MessageID  string   `json:"messageId"`
	Index      int      `json:"index"`
	Total      int      `json:"total"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	DeadlineMs int64    `json:"deadlineMs"`
}

type answeringClosedPayload struct {
	MessageID string `json:"messageId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// client is one websocket connection joined to a conversation room.
type client struct {
	conversationID string
	userID         string
	send           chan outboundMessage[any]
	closed         bool
}

// Hub fans quiz updates out to every connection of a conversation. It is the
// app.Transport of the websocket front end.
type Hub struct {
	logger *zap.Logger

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, rooms: make(map[string]map[*client]struct{})}
}

func (h *Hub) register(conversationID, userID string) *client {
	c := &client{
		conversationID: conversationID,
		userID:         userID,
		send:           make(chan outboundMessage[any], 16),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[conversationID] = room
	}
	room[c] = struct{}{}
	return c
}

// unregister removes c and closes its send channel; no send happens after.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	room := h.rooms[c.conversationID]
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.conversationID)
	}
}

// RoomSize returns the number of connections in a conversation.
func (h *Hub) RoomSize(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

func (h *Hub) sendTo(c *client, msg outboundMessage[any]) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliverLocked(c, msg)
}

func (h *Hub) broadcast(conversationID string, msg outboundMessage[any]) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[conversationID] {
		h.deliverLocked(c, msg)
	}
}

// deliverLocked never blocks; a client that cannot keep up misses the update.
func (h *Hub) deliverLocked(c *client, msg outboundMessage[any]) {
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("dropping message for slow client",
			zap.String("conversation_id", c.conversationID),
			zap.String("user_id", c.userID),
			zap.String("type", msg.Type),
		)
	}
}

func (h *Hub) RenderQuestion(ctx context.Context, conversationID string, question domain.Question, index, total int, deadline time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	handle := uuid.NewString()
	h.broadcast(conversationID, outboundMessage[any]{Type: "question", Payload: questionPayload{
		MessageID:  handle,
		Index:      index,
		Total:      total,
		Text:       question.Text,
		Options:    question.Options,
		DeadlineMs: deadline.Milliseconds(),
	}})
	return handle, nil
}

func (h *Hub) RenderResults(ctx context.Context, conversationID string, result domain.QuestionResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.broadcast(conversationID, outboundMessage[any]{Type: "results", Payload: result})
	return nil
}

func (h *Hub) RenderLeaderboard(ctx context.Context, conversationID string, report domain.LeaderboardReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.broadcast(conversationID, outboundMessage[any]{Type: "leaderboard", Payload: report})
	return nil
}

func (h *Hub) DisableAnswering(ctx context.Context, conversationID, messageHandle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.broadcast(conversationID, outboundMessage[any]{Type: "answeringClosed", Payload: answeringClosedPayload{MessageID: messageHandle}})
	return nil
}

func (h *Hub) RenderError(ctx context.Context, conversationID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.broadcast(conversationID, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
	return nil
}
