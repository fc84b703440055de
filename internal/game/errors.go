package game

import "errors"

// Errors surfaced to clients via acks. Anything else that goes wrong during
// gameplay (stale-phase actions, unknown players, double submissions) is
// silently dropped; slow clients are expected to send stale messages.
var (
	// ErrSessionNotFound is returned when the target session is absent.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNicknameTaken is returned when a join uses a nickname already in
	// use within the session. Nicknames are case-sensitive.
	ErrNicknameTaken = errors.New("nickname already taken")

	// ErrNoQuestions is returned by a QuestionStore when no question
	// matches. The engine treats it as the end of the game.
	ErrNoQuestions = errors.New("no questions available")
)
