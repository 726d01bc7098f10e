package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"trivia-service/internal/domain"
)

type quizResult struct {
	bun.BaseModel `bun:"table:quiz_results"`

	SessionID        string                    `bun:"session_id,pk"`
	ConversationID   string                    `bun:"conversation_id,notnull"`
	QuizID           string                    `bun:"quiz_id,notnull"`
	Status           string                    `bun:"status,notnull"`
	ParticipantCount int                       `bun:"participant_count,notnull"`
	EndedEarly       bool                      `bun:"ended_early,notnull"`
	StartedAt        time.Time                 `bun:"started_at,notnull"`
	EndedAt          bun.NullTime              `bun:"ended_at"`
	Report           *domain.LeaderboardReport `bun:"report,type:jsonb"`
}

// ResultsRecorder persists one row per quiz session. It is an app.EventSink.
type ResultsRecorder struct {
	db *bun.DB
}

func NewResultsRecorder(db *bun.DB) *ResultsRecorder {
	return &ResultsRecorder{db: db}
}

func (r *ResultsRecorder) QuizStarted(ctx context.Context, snapshot domain.SessionSnapshot) error {
	row := quizResult{
		SessionID:      snapshot.SessionID,
		ConversationID: snapshot.ConversationID,
		QuizID:         snapshot.QuizID,
		Status:         string(domain.StatusRunning),
		StartedAt:      snapshot.StartedAt,
	}
	if _, err := r.db.NewInsert().Model(&row).On("CONFLICT (session_id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("record quiz start: %w", err)
	}
	return nil
}

// QuizCompleted upserts so a session whose start was never recorded still
// gets its result row.
func (r *ResultsRecorder) QuizCompleted(ctx context.Context, report domain.LeaderboardReport) error {
	row := quizResult{
		SessionID:        report.SessionID,
		ConversationID:   report.ConversationID,
		QuizID:           report.QuizID,
		Status:           string(domain.StatusCompleted),
		ParticipantCount: report.ParticipantCount,
		EndedEarly:       report.EndedEarly,
		StartedAt:        report.StartedAt,
		EndedAt:          bun.NullTime{Time: report.EndedAt},
		Report:           &report,
	}
	_, err := r.db.NewInsert().
		Model(&row).
		On("CONFLICT (session_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("participant_count = EXCLUDED.participant_count").
		Set("ended_early = EXCLUDED.ended_early").
		Set("ended_at = EXCLUDED.ended_at").
		Set("report = EXCLUDED.report").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("record quiz result: %w", err)
	}
	return nil
}

// History returns the most recent completed reports of a conversation.
func (r *ResultsRecorder) History(ctx context.Context, conversationID string, limit int) ([]domain.LeaderboardReport, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []quizResult
	err := r.db.NewSelect().
		Model(&rows).
		Where("conversation_id = ?", conversationID).
		Where("status = ?", string(domain.StatusCompleted)).
		Order("ended_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	reports := make([]domain.LeaderboardReport, 0, len(rows))
	for _, row := range rows {
		if row.Report != nil {
			reports = append(reports, *row.Report)
		}
	}
	return reports, nil
}
