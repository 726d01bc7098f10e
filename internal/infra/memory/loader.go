package memory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"trivia-service/internal/domain"
)

// StaticQuizLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticQuizLoader struct {
	quizzes map[string]domain.QuizDefinition
}

func NewStaticQuizLoader(quizzes map[string]domain.QuizDefinition) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.QuizDefinition, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.QuizDefinition{}, domain.ErrQuizNotFound
}

// quizFile is the YAML layout of a quiz definitions file.
type quizFile struct {
	Quizzes []domain.QuizDefinition `yaml:"quizzes"`
}

// ReadQuizFile parses a YAML file holding one or more quiz definitions.
func ReadQuizFile(path string) ([]domain.QuizDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file quizFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, quiz := range file.Quizzes {
		if quiz.ID == "" {
			return nil, fmt.Errorf("%w: quiz %d in %s has no id", domain.ErrInvalidQuiz, i+1, path)
		}
	}
	return file.Quizzes, nil
}

// NewFileQuizLoader loads every quiz of a YAML definitions file up front.
func NewFileQuizLoader(path string) (*StaticQuizLoader, error) {
	quizzes, err := ReadQuizFile(path)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.QuizDefinition, len(quizzes))
	for _, quiz := range quizzes {
		if _, dup := byID[quiz.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate quiz id %q in %s", domain.ErrInvalidQuiz, quiz.ID, path)
		}
		byID[quiz.ID] = quiz
	}
	return NewStaticQuizLoader(byID), nil
}
