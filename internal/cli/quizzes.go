package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trivia-service/internal/config"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/memory"
	pgloader "trivia-service/internal/infra/postgres"
)

// NewQuizzesCmd groups quiz content tooling.
func NewQuizzesCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quizzes",
		Short: "Validate and import quiz definitions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE",
		Short: "Check a quiz definitions file against the question policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOrDefault(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			quizzes, err := readValidQuizzes(args[0], cfg)
			if err != nil {
				return err
			}
			for _, quiz := range quizzes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d questions\t%s\n", quiz.ID, len(quiz.Questions), quiz.Title)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Validate quiz definitions and upsert them into Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log.Level)
			defer logger.Sync()
			return importQuizzes(cmd.Context(), cfg, args[0], logger)
		},
	})
	return cmd
}

func policyFrom(cfg config.Config) domain.QuestionPolicy {
	return domain.QuestionPolicy{MinQuestions: cfg.Quiz.MinQuestions, MaxQuestions: cfg.Quiz.MaxQuestions}
}

// readValidQuizzes reports every invalid quiz, not just the first one.
func readValidQuizzes(path string, cfg config.Config) ([]domain.QuizDefinition, error) {
	quizzes, err := memory.ReadQuizFile(path)
	if err != nil {
		return nil, err
	}
	var errs []error
	seen := make(map[string]struct{}, len(quizzes))
	for _, quiz := range quizzes {
		if _, dup := seen[quiz.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: %w: duplicate id", quiz.ID, domain.ErrInvalidQuiz))
		}
		seen[quiz.ID] = struct{}{}
		if err := quiz.Validate(policyFrom(cfg)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", quiz.ID, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return quizzes, nil
}

func importQuizzes(ctx context.Context, cfg config.Config, path string, logger *zap.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	quizzes, err := readValidQuizzes(path, cfg)
	if err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := pgloader.NewQuizLoader(pool)
	for _, quiz := range quizzes {
		if err := loader.SaveQuiz(ctx, quiz); err != nil {
			return err
		}
		logger.Info("quiz imported", zap.String("quiz_id", quiz.ID), zap.Int("questions", len(quiz.Questions)))
	}
	return nil
}
