package app

import (
	"time"

	"trivia-service/internal/domain"
)

const (
	basePoints        = 1
	firstCorrectBonus = 1
	streakBonus       = 1
	// streakBonusFrom is the streak length that starts earning the streak bonus.
	streakBonusFrom = 2
)

type scoreInput struct {
	correctAnswer     int
	answerIndex       int
	firstCorrectTaken bool
	streakBefore      int
}

type scoreResult struct {
	isCorrect      bool
	isFirstCorrect bool
	points         int
	streakAfter    int
}

// scoreAnswer computes the points for one answer. Wrong answers only reset
// the streak; there is no negative scoring.
func scoreAnswer(in scoreInput) scoreResult {
	if in.answerIndex != in.correctAnswer {
		return scoreResult{}
	}
	res := scoreResult{
		isCorrect:   true,
		points:      basePoints,
		streakAfter: in.streakBefore + 1,
	}
	if !in.firstCorrectTaken {
		res.isFirstCorrect = true
		res.points += firstCorrectBonus
	}
	if res.streakAfter >= streakBonusFrom {
		res.points += streakBonus
	}
	return res
}

// submitAnswerLocked validates and records an answer. The caller holds s.mu,
// so processing order decides who is first correct.
func submitAnswerLocked(s *Session, questionIndex int, userID, displayName string, answerIndex int, now time.Time) (domain.AnswerOutcome, error) {
	if questionIndex < 0 || questionIndex >= len(s.questions) || questionIndex > s.currentIndex {
		return domain.AnswerOutcome{}, domain.ErrNoActiveQuestion
	}
	q := &s.questions[questionIndex]
	if q.locked {
		return domain.AnswerOutcome{}, domain.ErrQuestionLocked
	}
	if s.status != domain.StatusRunning || questionIndex != s.currentIndex {
		return domain.AnswerOutcome{}, domain.ErrNoActiveQuestion
	}
	if _, ok := q.answered[userID]; ok {
		return domain.AnswerOutcome{}, domain.ErrDuplicateAnswer
	}
	if answerIndex < 0 || answerIndex >= len(q.question.Options) {
		return domain.AnswerOutcome{}, domain.ErrInvalidOption
	}

	participant, ok := s.participants[userID]
	if !ok {
		participant = &domain.Participant{UserID: userID, DisplayName: displayName}
		s.participants[userID] = participant
	} else if displayName != "" {
		participant.DisplayName = displayName
	}

	res := scoreAnswer(scoreInput{
		correctAnswer:     q.question.CorrectAnswer,
		answerIndex:       answerIndex,
		firstCorrectTaken: q.firstCorrect != "",
		streakBefore:      participant.CurrentStreak,
	})

	participant.CurrentStreak = res.streakAfter
	if res.isCorrect {
		participant.CorrectAnswerCount++
		if participant.CurrentStreak > participant.MaxStreak {
			participant.MaxStreak = participant.CurrentStreak
		}
	}
	if res.isFirstCorrect {
		q.firstCorrect = userID
	}

	response := domain.Response{
		UserID:         userID,
		QuestionIndex:  questionIndex,
		AnswerIndex:    answerIndex,
		Timestamp:      now,
		IsCorrect:      res.isCorrect,
		IsFirstCorrect: res.isFirstCorrect,
		PointsAwarded:  res.points,
	}
	q.responses = append(q.responses, response)
	q.answered[userID] = struct{}{}
	participant.Responses = append(participant.Responses, response)
	participant.Score += res.points
	participant.LastResponseTimestamp = now

	return domain.AnswerOutcome{
		QuestionIndex:  questionIndex,
		IsCorrect:      res.isCorrect,
		IsFirstCorrect: res.isFirstCorrect,
		PointsAwarded:  res.points,
		StreakAfter:    participant.CurrentStreak,
		TotalScore:     participant.Score,
	}, nil
}
