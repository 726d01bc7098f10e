package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"trivia-service/internal/domain"
)

// EventType is the routing key of a published event.
type EventType string

const (
	EventTypeQuizStarted   EventType = "quiz.started"
	EventTypeQuizCompleted EventType = "quiz.completed"
)

// Event is the envelope written to the exchange.
type Event struct {
	ID             string      `json:"id"`
	Type           EventType   `json:"type"`
	ConversationID string      `json:"conversationId"`
	SessionID      string      `json:"sessionId"`
	OccurredAt     time.Time   `json:"occurredAt"`
	Payload        interface{} `json:"payload"`
}

// Publisher pushes quiz lifecycle events to a RabbitMQ topic exchange. It is
// an app.EventSink; with an empty URL it logs and drops events.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	enabled  bool
	logger   *zap.Logger
}

func NewPublisher(url, exchange string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if url == "" {
		logger.Warn("rabbitmq url is empty, event publishing is disabled")
		return &Publisher{logger: logger}, nil
	}
	if exchange == "" {
		exchange = "quiz.events"
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		enabled:  true,
		logger:   logger,
	}, nil
}

// Enabled reports whether events reach a broker.
func (p *Publisher) Enabled() bool { return p.enabled }

func (p *Publisher) QuizStarted(ctx context.Context, snapshot domain.SessionSnapshot) error {
	return p.publish(ctx, newEvent(EventTypeQuizStarted, snapshot.ConversationID, snapshot.SessionID, snapshot))
}

func (p *Publisher) QuizCompleted(ctx context.Context, report domain.LeaderboardReport) error {
	return p.publish(ctx, newEvent(EventTypeQuizCompleted, report.ConversationID, report.SessionID, report))
}

func newEvent(t EventType, conversationID, sessionID string, payload interface{}) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           t,
		ConversationID: conversationID,
		SessionID:      sessionID,
		OccurredAt:     time.Now().UTC(),
		Payload:        payload,
	}
}

func (p *Publisher) publish(ctx context.Context, event Event) error {
	if !p.enabled {
		p.logger.Debug("event publishing is disabled, skipping event", zap.String("type", string(event.Type)))
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchange,         // exchange
		string(event.Type), // routing key
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	p.logger.Debug("published event", zap.String("type", string(event.Type)), zap.String("session_id", event.SessionID))
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
