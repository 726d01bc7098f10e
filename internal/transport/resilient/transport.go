// Package resilient retries transient transport failures with exponential backoff.
package resilient

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

// Config bounds the retries of a single call.
type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Transport wraps another app.Transport. Every call stays bounded by the
// caller's context, so retries never hold up the engine past its render timeout.
type Transport struct {
	next   app.Transport
	cfg    Config
	logger *zap.Logger
}

func New(next app.Transport, cfg Config, logger *zap.Logger) *Transport {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{next: next, cfg: cfg, logger: logger}
}

func (t *Transport) RenderQuestion(ctx context.Context, conversationID string, question domain.Question, index, total int, deadline time.Duration) (string, error) {
	var handle string
	err := t.retry(ctx, "render_question", conversationID, func() error {
		h, err := t.next.RenderQuestion(ctx, conversationID, question, index, total, deadline)
		if err != nil {
			return err
		}
		handle = h
		return nil
	})
	return handle, err
}

func (t *Transport) RenderResults(ctx context.Context, conversationID string, result domain.QuestionResult) error {
	return t.retry(ctx, "render_results", conversationID, func() error {
		return t.next.RenderResults(ctx, conversationID, result)
	})
}

func (t *Transport) RenderLeaderboard(ctx context.Context, conversationID string, report domain.LeaderboardReport) error {
	return t.retry(ctx, "render_leaderboard", conversationID, func() error {
		return t.next.RenderLeaderboard(ctx, conversationID, report)
	})
}

func (t *Transport) DisableAnswering(ctx context.Context, conversationID, messageHandle string) error {
	return t.retry(ctx, "disable_answering", conversationID, func() error {
		return t.next.DisableAnswering(ctx, conversationID, messageHandle)
	})
}

func (t *Transport) RenderError(ctx context.Context, conversationID, message string) error {
	return t.retry(ctx, "render_error", conversationID, func() error {
		return t.next.RenderError(ctx, conversationID, message)
	})
}

func (t *Transport) retry(ctx context.Context, op, conversationID string, call func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cfg.InitialInterval
	b.MaxInterval = t.cfg.MaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, t.cfg.MaxRetries), ctx)

	operation := func() error {
		err := call()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		t.logger.Debug("retrying transport call",
			zap.String("operation", op),
			zap.String("conversation_id", conversationID),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	return backoff.RetryNotify(operation, policy, notify)
}
