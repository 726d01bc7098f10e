package domain

import (
	"errors"
	"fmt"
	"strings"
)

// QuestionPolicy bounds how many questions a quiz may hold.
type QuestionPolicy struct {
	MinQuestions int
	MaxQuestions int
}

// Validate checks quiz content and the question count policy.
func (q QuizDefinition) Validate(policy QuestionPolicy) error {
	if policy.MinQuestions > 0 && len(q.Questions) < policy.MinQuestions {
		return fmt.Errorf("%w: got %d, need at least %d", ErrTooFewQuestions, len(q.Questions), policy.MinQuestions)
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: got 0", ErrTooFewQuestions)
	}
	if policy.MaxQuestions > 0 && len(q.Questions) > policy.MaxQuestions {
		return fmt.Errorf("%w: got %d, limit %d", ErrTooManyQuestions, len(q.Questions), policy.MaxQuestions)
	}
	for i, question := range q.Questions {
		if err := question.Validate(); err != nil {
			return fmt.Errorf("%w: question %d: %s", ErrInvalidQuiz, i+1, err.Error())
		}
	}
	if q.Settings.QuestionTime < 0 || q.Settings.IntermissionTime < 0 {
		return fmt.Errorf("%w: negative timer", ErrInvalidQuiz)
	}
	return nil
}

// Validate checks a single question is answerable.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("empty text")
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("expected %d options, got %d", OptionCount, len(q.Options))
	}
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("option %d is empty", i+1)
		}
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= OptionCount {
		return fmt.Errorf("correct answer %d out of range", q.CorrectAnswer)
	}
	return nil
}
