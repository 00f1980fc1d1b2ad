package domain

import "errors"

var (
	// ErrGameNotFound is returned when no game exists for a PIN.
	ErrGameNotFound = errors.New("game not found")
	// ErrPlayerNotFound is returned when a player acts before joining.
	ErrPlayerNotFound = errors.New("player not found in game")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question index out of range.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAlreadyAnswered rejects a duplicate submission for a question.
	// Late or retried submissions land here and are treated as a no-op.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrQuestionClosed rejects submissions after the question was finalized.
	ErrQuestionClosed = errors.New("question no longer accepting answers")
	// ErrGameFull is returned when the configured player cap is reached.
	ErrGameFull = errors.New("game is full")
	// ErrNoAvailablePIN is returned when PIN allocation keeps colliding.
	ErrNoAvailablePIN = errors.New("no available game pin")
	// ErrBadTransition is returned for host actions invalid in the current state.
	ErrBadTransition = errors.New("invalid game state transition")
	// ErrGameOver is returned for actions against a terminal game.
	ErrGameOver = errors.New("game already ended")
)
