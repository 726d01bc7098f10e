package app

import (
	"sort"
	"time"

	"trivia-service/internal/domain"
)

// bestStreakMin is the smallest max streak worth a mention in the report.
const bestStreakMin = 2

// ReportInput is everything Finalize needs from a finished session.
type ReportInput struct {
	SessionID      string
	ConversationID string
	QuizID         string
	QuizTitle      string
	Participants   []domain.Participant
	// Questions holds the results of every question that was posted.
	Questions      []domain.QuestionResult
	TotalQuestions int
	EndedEarly     bool
	StartedAt      time.Time
	EndedAt        time.Time
}

// Finalize ranks participants and computes the summary statistics. It is a
// pure function: the same input always yields the same ordering.
func Finalize(in ReportInput) domain.LeaderboardReport {
	entries := RankParticipants(in.Participants)

	report := domain.LeaderboardReport{
		SessionID:        in.SessionID,
		ConversationID:   in.ConversationID,
		QuizID:           in.QuizID,
		QuizTitle:        in.QuizTitle,
		Entries:          entries,
		ParticipantCount: len(entries),
		StumpedQuestions: []int{},
		QuestionsAsked:   len(in.Questions),
		TotalQuestions:   in.TotalQuestions,
		EndedEarly:       in.EndedEarly,
		StartedAt:        in.StartedAt,
		EndedAt:          in.EndedAt,
	}

	if len(entries) > 0 {
		var scoreSum, correctSum int
		for _, e := range entries {
			scoreSum += e.Score
			correctSum += e.CorrectAnswerCount
		}
		report.AverageScore = float64(scoreSum) / float64(len(entries))
		report.AverageCorrect = float64(correctSum) / float64(len(entries))
	}

	// Entries are ranked, so the first strictly-greater streak wins ties.
	for _, e := range entries {
		if e.MaxStreak < bestStreakMin {
			continue
		}
		if report.BestStreak == nil || e.MaxStreak > report.BestStreak.MaxStreak {
			report.BestStreak = &domain.StreakHighlight{
				UserID:      e.UserID,
				DisplayName: e.DisplayName,
				MaxStreak:   e.MaxStreak,
			}
		}
	}

	for _, q := range in.Questions {
		if q.CorrectCount == 0 {
			report.StumpedQuestions = append(report.StumpedQuestions, q.QuestionIndex)
		}
	}
	return report
}

// RankParticipants orders by score desc, correct answers desc, earliest last
// response, then user id so equal keys still sort deterministically.
func RankParticipants(participants []domain.Participant) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:                p.UserID,
			DisplayName:           p.DisplayName,
			Score:                 p.Score,
			CorrectAnswerCount:    p.CorrectAnswerCount,
			MaxStreak:             p.MaxStreak,
			LastResponseTimestamp: p.LastResponseTimestamp,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CorrectAnswerCount != b.CorrectAnswerCount {
			return a.CorrectAnswerCount > b.CorrectAnswerCount
		}
		if !a.LastResponseTimestamp.Equal(b.LastResponseTimestamp) {
			return a.LastResponseTimestamp.Before(b.LastResponseTimestamp)
		}
		return a.UserID < b.UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// questionResultLocked summarizes one question's responses.
func (s *Session) questionResultLocked(index int) domain.QuestionResult {
	q := s.questions[index]
	result := domain.QuestionResult{
		QuestionIndex: index,
		Total:         len(s.questions),
		Question:      q.question,
		CorrectAnswer: q.question.CorrectAnswer,
		ResponseCount: len(q.responses),
		OptionCounts:  make([]int, len(q.question.Options)),
	}
	for _, r := range q.responses {
		if r.IsCorrect {
			result.CorrectCount++
		}
		if r.AnswerIndex >= 0 && r.AnswerIndex < len(result.OptionCounts) {
			result.OptionCounts[r.AnswerIndex]++
		}
	}
	if q.firstCorrect != "" {
		result.FirstCorrectUserID = q.firstCorrect
		if p, ok := s.participants[q.firstCorrect]; ok {
			result.FirstCorrectName = p.DisplayName
		}
	}
	return result
}

func (s *Session) reportInputLocked() ReportInput {
	asked := s.questionsAskedLocked()
	questions := make([]domain.QuestionResult, 0, asked)
	for i := 0; i < asked; i++ {
		questions = append(questions, s.questionResultLocked(i))
	}
	return ReportInput{
		SessionID:      s.id,
		ConversationID: s.conversationID,
		QuizID:         s.quizID,
		QuizTitle:      s.title,
		Participants:   s.participantsLocked(),
		Questions:      questions,
		TotalQuestions: len(s.questions),
		EndedEarly:     s.endedEarly,
		StartedAt:      s.startedAt,
		EndedAt:        s.endedAt,
	}
}
