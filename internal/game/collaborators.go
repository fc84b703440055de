package game

import (
	"context"

	"github.com/blankparty/hackbox/internal/game/events"
	"github.com/blankparty/hackbox/internal/models"
)

// QuestionStore is the engine's view of durable prompt storage. Both methods
// return ErrNoQuestions when nothing matches.
type QuestionStore interface {
	// RandomQuestion returns one uniformly random question.
	RandomQuestion(ctx context.Context) (*models.Question, error)

	// RandomQuestionExcluding returns one uniformly random question whose
	// ID differs from the given one.
	RandomQuestionExcluding(ctx context.Context, id int64) (*models.Question, error)
}

// Broadcaster fans events out to connected clients. It is write-only from
// the engine's perspective and must never block gameplay; implementations
// drop or queue on backpressure.
type Broadcaster interface {
	// PublishToSession delivers an event to every client subscribed to the
	// session's channel.
	PublishToSession(ctx context.Context, sessionID string, typ events.EventType, payload any)

	// PublishToAll delivers an event to every connected client across all
	// channels.
	PublishToAll(ctx context.Context, typ events.EventType, payload any)
}

// Recorder persists gameplay facts best-effort. Calls enqueue and return
// immediately; write failures are logged by the implementation and never
// reach the gameplay path.
type Recorder interface {
	SessionCreated(ctx context.Context, sessionID, name string)
	PlayerJoined(ctx context.Context, player *models.Player)
	AnswerSubmitted(ctx context.Context, sessionID string, questionID int64, playerID, text string)
	VoteAccepted(ctx context.Context, sessionID string, questionID int64, ownerID string)
	ScoreUpdated(ctx context.Context, sessionID, playerID string, score int)
}

// NopRecorder discards everything. Useful when running without a database.
type NopRecorder struct{}

func (NopRecorder) SessionCreated(context.Context, string, string)                {}
func (NopRecorder) PlayerJoined(context.Context, *models.Player)                  {}
func (NopRecorder) AnswerSubmitted(context.Context, string, int64, string, string) {}
func (NopRecorder) VoteAccepted(context.Context, string, int64, string)           {}
func (NopRecorder) ScoreUpdated(context.Context, string, string, int)             {}
