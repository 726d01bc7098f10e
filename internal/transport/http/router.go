package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

// HistoryReader lists finished quizzes of a conversation.
type HistoryReader interface {
	History(ctx context.Context, conversationID string, limit int) ([]domain.LeaderboardReport, error)
}

// RouterConfig wires the HTTP surface. History and Metrics are optional.
type RouterConfig struct {
	Engine         QuizEngine
	Hub            *Hub
	History        HistoryReader
	Metrics        http.Handler
	AllowedOrigins []string
	Logger         *zap.Logger
}

type api struct {
	engine  QuizEngine
	history HistoryReader
	logger  *zap.Logger
}

// NewRouter builds the HTTP handler: websocket endpoint, read API and
// admin actions.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	a := &api{engine: cfg.Engine, history: cfg.History, logger: cfg.Logger}
	ws := NewWSHandler(cfg.Engine, cfg.Hub, cfg.AllowedOrigins, cfg.Logger)

	r := mux.NewRouter()
	r.Use(requestLogger(cfg.Logger))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	conv := r.PathPrefix("/conversations/{conversationID}").Subrouter()
	conv.HandleFunc("/session", a.getSession).Methods(http.MethodGet)
	conv.HandleFunc("/leaderboard", a.getLeaderboard).Methods(http.MethodGet)
	conv.HandleFunc("/history", a.getHistory).Methods(http.MethodGet)
	conv.HandleFunc("/quiz", a.startQuiz).Methods(http.MethodPost)
	conv.HandleFunc("/quiz/end", a.endQuiz).Methods(http.MethodPost)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", userHeader},
	}).Handler(r)
}

// userHeader carries the acting user for admin actions; authentication is
// left to the gateway in front of the service.
const userHeader = "X-User-ID"

func (a *api) getSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := a.engine.Snapshot(mux.Vars(r)["conversationID"])
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// getLeaderboard returns the final report of a completed session or the
// live ranking of a running one.
func (a *api) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	snapshot, err := a.engine.Snapshot(mux.Vars(r)["conversationID"])
	if err != nil {
		a.writeError(w, err)
		return
	}
	if snapshot.Report != nil {
		writeJSON(w, http.StatusOK, snapshot.Report)
		return
	}
	writeJSON(w, http.StatusOK, domain.LeaderboardReport{
		SessionID:        snapshot.SessionID,
		ConversationID:   snapshot.ConversationID,
		QuizID:           snapshot.QuizID,
		QuizTitle:        snapshot.QuizTitle,
		Entries:          app.RankParticipants(snapshot.Participants),
		ParticipantCount: len(snapshot.Participants),
		StumpedQuestions: []int{},
		TotalQuestions:   snapshot.TotalQuestions,
		StartedAt:        snapshot.StartedAt,
	})
}

func (a *api) getHistory(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		http.Error(w, "history not configured", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	reports, err := a.history.History(r.Context(), mux.Vars(r)["conversationID"], limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

type startRequest struct {
	QuizID string `json:"quizId"`
}

func (a *api) startQuiz(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	snapshot, err := a.engine.StartQuiz(r.Context(), mux.Vars(r)["conversationID"], r.Header.Get(userHeader), req.QuizID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

func (a *api) endQuiz(w http.ResponseWriter, r *http.Request) {
	report, err := a.engine.EndEarly(r.Context(), mux.Vars(r)["conversationID"], r.Header.Get(userHeader))
	if errors.Is(err, domain.ErrSessionCompleted) {
		writeJSON(w, http.StatusOK, report)
		return
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *api) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorPayload{Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrQuizNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyActive), errors.Is(err, domain.ErrSessionCompleted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidQuiz), errors.Is(err, domain.ErrTooFewQuestions), errors.Is(err, domain.ErrTooManyQuestions):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogger logs every request except the websocket upgrade, whose
// writer must stay a http.Hijacker.
func requestLogger(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("request",
				zap.Int("status", rec.status),
				zap.Duration("latency", time.Since(start)),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
		})
	}
}
