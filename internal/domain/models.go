package domain

import "time"

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// Status is the lifecycle state of a quiz session.
type Status string

const (
	StatusSetup        Status = "setup"
	StatusRunning      Status = "running"
	StatusIntermission Status = "intermission"
	StatusCompleted    Status = "completed"
)

// Settings are fixed at session creation.
type Settings struct {
	QuestionTime     time.Duration `json:"questionTime" yaml:"question_time"`
	IntermissionTime time.Duration `json:"intermissionTime" yaml:"intermission_time"`
}

// Question models an MCQ question with exactly four options.
type Question struct {
	Text          string   `json:"text" yaml:"text"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer int      `json:"correctAnswer" yaml:"correct_answer"`
}

// QuizDefinition is the immutable content a session is created from.
type QuizDefinition struct {
	ID        string     `json:"id" yaml:"id"`
	Title     string     `json:"title" yaml:"title"`
	Category  string     `json:"category,omitempty" yaml:"category"`
	Questions []Question `json:"questions" yaml:"questions"`
	// Settings overrides the configured defaults when non-zero.
	Settings Settings `json:"settings" yaml:"settings"`
}

// Response is one accepted answer. It never changes once recorded.
type Response struct {
	UserID         string    `json:"userId"`
	QuestionIndex  int       `json:"questionIndex"`
	AnswerIndex    int       `json:"answerIndex"`
	Timestamp      time.Time `json:"timestamp"`
	IsCorrect      bool      `json:"isCorrect"`
	IsFirstCorrect bool      `json:"isFirstCorrect"`
	PointsAwarded  int       `json:"pointsAwarded"`
}

// Participant represents a user who answered at least once in a session.
type Participant struct {
	UserID                string     `json:"userId"`
	DisplayName           string     `json:"displayName"`
	Score                 int        `json:"score"`
	CorrectAnswerCount    int        `json:"correctAnswerCount"`
	CurrentStreak         int        `json:"currentStreak"`
	MaxStreak             int        `json:"maxStreak"`
	LastResponseTimestamp time.Time  `json:"lastResponseTimestamp"`
	Responses             []Response `json:"responses"`
}

// AnswerOutcome summarizes an accepted submission for the answering user.
type AnswerOutcome struct {
	QuestionIndex  int  `json:"questionIndex"`
	IsCorrect      bool `json:"isCorrect"`
	IsFirstCorrect bool `json:"isFirstCorrect"`
	PointsAwarded  int  `json:"pointsAwarded"`
	StreakAfter    int  `json:"streakAfter"`
	TotalScore     int  `json:"totalScore"`
}

// QuestionResult is what gets shown once a question closes.
type QuestionResult struct {
	QuestionIndex      int      `json:"questionIndex"`
	Total              int      `json:"total"`
	Question           Question `json:"question"`
	CorrectAnswer      int      `json:"correctAnswer"`
	FirstCorrectUserID string   `json:"firstCorrectUserId,omitempty"`
	FirstCorrectName   string   `json:"firstCorrectName,omitempty"`
	ResponseCount      int      `json:"responseCount"`
	CorrectCount       int      `json:"correctCount"`
	// OptionCounts holds how many responses picked each option.
	OptionCounts []int `json:"optionCounts"`
}

// LeaderboardEntry is one ranked row of the final standings.
type LeaderboardEntry struct {
	Rank                  int       `json:"rank"`
	UserID                string    `json:"userId"`
	DisplayName           string    `json:"displayName"`
	Score                 int       `json:"score"`
	CorrectAnswerCount    int       `json:"correctAnswerCount"`
	MaxStreak             int       `json:"maxStreak"`
	LastResponseTimestamp time.Time `json:"lastResponseTimestamp"`
}

// StreakHighlight names the participant with the best streak of the quiz.
type StreakHighlight struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	MaxStreak   int    `json:"maxStreak"`
}

// LeaderboardReport is the final, render-ready result of a session.
type LeaderboardReport struct {
	SessionID        string             `json:"sessionId"`
	ConversationID   string             `json:"conversationId"`
	QuizID           string             `json:"quizId"`
	QuizTitle        string             `json:"quizTitle"`
	Entries          []LeaderboardEntry `json:"entries"`
	ParticipantCount int                `json:"participantCount"`
	AverageScore     float64            `json:"averageScore"`
	AverageCorrect   float64            `json:"averageCorrect"`
	BestStreak       *StreakHighlight   `json:"bestStreak,omitempty"`
	StumpedQuestions []int              `json:"stumpedQuestions"`
	QuestionsAsked   int                `json:"questionsAsked"`
	TotalQuestions   int                `json:"totalQuestions"`
	EndedEarly       bool               `json:"endedEarly"`
	StartedAt        time.Time          `json:"startedAt"`
	EndedAt          time.Time          `json:"endedAt"`
}

// SessionSnapshot is a copy of a session's state, safe to hand out.
type SessionSnapshot struct {
	SessionID            string             `json:"sessionId"`
	ConversationID       string             `json:"conversationId"`
	QuizID               string             `json:"quizId"`
	QuizTitle            string             `json:"quizTitle"`
	Status               Status             `json:"status"`
	CurrentQuestionIndex int                `json:"currentQuestionIndex"`
	TotalQuestions       int                `json:"totalQuestions"`
	Settings             Settings           `json:"settings"`
	Participants         []Participant      `json:"participants"`
	TimerOutstanding     bool               `json:"timerOutstanding"`
	StartedAt            time.Time          `json:"startedAt"`
	EndedAt              time.Time          `json:"endedAt,omitempty"`
	Report               *LeaderboardReport `json:"report,omitempty"`
}
