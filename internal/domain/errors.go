package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a conversation has no quiz session.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionCompleted is returned for administrative actions on a finished session.
	ErrSessionCompleted = errors.New("quiz session already completed")
	// ErrAlreadyActive is returned when a conversation already runs a quiz.
	ErrAlreadyActive = errors.New("a quiz is already active in this conversation")
	// ErrNotAdmin is returned when a non-admin tries to start or stop a quiz.
	ErrNotAdmin = errors.New("user is not an admin of this conversation")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz indicates malformed quiz content.
	ErrInvalidQuiz = errors.New("invalid quiz definition")
	// ErrTooFewQuestions indicates the quiz is below the configured minimum.
	ErrTooFewQuestions = errors.New("quiz has too few questions")
	// ErrTooManyQuestions indicates the quiz is above the configured maximum.
	ErrTooManyQuestions = errors.New("quiz has too many questions")

	// ErrNoActiveQuestion rejects answers when the question is not the one being asked.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrDuplicateAnswer rejects a second answer from the same user to the same question.
	ErrDuplicateAnswer = errors.New("answer already submitted for this question")
	// ErrQuestionLocked rejects answers that arrive after the question deadline.
	ErrQuestionLocked = errors.New("question is closed")
	// ErrInvalidOption rejects an answer index outside the question's options.
	ErrInvalidOption = errors.New("option not found")
)

// IsRejection reports whether err is one of the answer rejection reasons.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNoActiveQuestion) ||
		errors.Is(err, ErrDuplicateAnswer) ||
		errors.Is(err, ErrQuestionLocked) ||
		errors.Is(err, ErrInvalidOption)
}
