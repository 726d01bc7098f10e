package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trivia-service/internal/app"
	"trivia-service/internal/config"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/events"
	"trivia-service/internal/infra/memory"
	pgloader "trivia-service/internal/infra/postgres"
	infraredis "trivia-service/internal/infra/redis"
	"trivia-service/internal/metrics"
	transport "trivia-service/internal/transport/http"
	"trivia-service/internal/transport/resilient"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// loadOrDefault falls back to the built-in defaults only when the file is
// missing; a file that fails to parse is an error.
func loadOrDefault(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadOrDefault(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)
	defer logger.Sync()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)

	var pool *pgxpool.Pool
	var sinks []app.EventSink
	var history transport.HistoryReader
	if cfg.Postgres.URL != "" {
		db, err := openBun(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := runMigrations(ctx, db, logger); err != nil {
			return err
		}
		recorder := pgloader.NewResultsRecorder(db)
		sinks = append(sinks, recorder)
		history = recorder

		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	publisher, err := events.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()
	sinks = append(sinks, publisher)

	loader, err := quizLoader(cfg, pool)
	if err != nil {
		return err
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	grace := config.TTLDuration(cfg.Quiz.GracePeriod, 30*time.Second)
	var (
		quizRepo app.QuizRepository
		store    app.SessionRepository
		access   app.AccessControl
	)
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
		store = infraredis.NewSessionStore(redisClient, redisTTL, app.SystemScheduler{}, grace)
		redisAccess := infraredis.NewAccessControl(redisClient)
		for _, admin := range cfg.Quiz.Admins {
			if err := redisAccess.GrantGlobal(ctx, admin); err != nil {
				return err
			}
		}
		access = redisAccess
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		store = memory.NewSessionStore(app.SystemScheduler{}, grace)
		access = memory.NewStaticAccessControl(cfg.Quiz.Admins)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := transport.NewHub(logger)
	renderer := resilient.New(hub, resilient.Config{
		MaxRetries:      cfg.Transport.MaxRetries,
		InitialInterval: config.TTLDuration(cfg.Transport.InitialInterval, 200*time.Millisecond),
		MaxInterval:     config.TTLDuration(cfg.Transport.MaxInterval, 2*time.Second),
	}, logger)

	engine := app.NewEngine(store, quizRepo, access, renderer, app.Options{
		Defaults: domain.Settings{
			QuestionTime:     config.TTLDuration(cfg.Quiz.QuestionTime, 30*time.Second),
			IntermissionTime: config.TTLDuration(cfg.Quiz.IntermissionTime, 5*time.Second),
		},
		Policy:               policyFrom(cfg),
		CloseWhenAllAnswered: cfg.Quiz.CloseWhenAllAnswered,
		RenderTimeout:        config.TTLDuration(cfg.Transport.RenderTimeout, 30*time.Second),
		Logger:               logger,
		Metrics:              metrics.New(registry),
		Sinks:                sinks,
	})

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(transport.RouterConfig{
			Engine:         engine,
			Hub:            hub,
			History:        history,
			Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Logger:         logger,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting quiz service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func quizLoader(cfg config.Config, pool *pgxpool.Pool) (memory.QuizLoader, error) {
	switch {
	case pool != nil:
		return pgloader.NewQuizLoader(pool), nil
	case cfg.Quiz.DefinitionsFile != "":
		return memory.NewFileQuizLoader(cfg.Quiz.DefinitionsFile)
	default:
		return memory.NewStaticQuizLoader(sampleQuizzes()), nil
	}
}

// sampleQuizzes provides a minimal set of quiz data; point quiz.definitions_file or postgres at real content.
func sampleQuizzes() map[string]domain.QuizDefinition {
	return map[string]domain.QuizDefinition{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					Text:          "What is 2 + 2?",
					Options:       []string{"3", "4", "5", "22"},
					CorrectAnswer: 1,
				},
				{
					Text:          "Which planet is known as the Red Planet?",
					Options:       []string{"Venus", "Jupiter", "Mars", "Mercury"},
					CorrectAnswer: 2,
				},
			},
		},
	}
}
