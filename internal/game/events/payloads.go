package events

import (
	"github.com/blankparty/hackbox/internal/models"
)

// Event payload types shared between the game engine and the gateway.

// PlayerSnapshot is the wire form of a player in rosters and leaderboards.
type PlayerSnapshot struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// AnswerOption is one shuffled answer presented during the voting phase.
// ID is the owning player's ID; ownership is not revealed to clients beyond
// the opaque ID they vote with.
type AnswerOption struct {
	ID     string `json:"id"`
	Answer string `json:"answer"`
}

// AnswerResult is one revealed answer in the results payload.
type AnswerResult struct {
	Nickname string `json:"nickname"`
	Answer   string `json:"answer"`
	Votes    int    `json:"votes"`
}

// PlayersUpdatedPayload is the payload for a players-updated event.
type PlayersUpdatedPayload struct {
	Players []PlayerSnapshot `json:"players"`
}

// GameStartedPayload is the payload for a game-started event.
type GameStartedPayload struct {
	Question      string `json:"question"`
	TimeRemaining int    `json:"time_remaining"`
}

// TimerUpdatePayload is the payload for a timer-update event.
type TimerUpdatePayload struct {
	TimeRemaining int `json:"time_remaining"`
}

// VotingPhasePayload is the payload for a voting-phase event.
type VotingPhasePayload struct {
	Answers       []AnswerOption `json:"answers"`
	TimeRemaining int            `json:"time_remaining"`
}

// ResultsPayload is the payload for a results event. Results are sorted by
// votes descending, leaderboard by score descending; ties keep encounter
// order.
type ResultsPayload struct {
	Results     []AnswerResult   `json:"results"`
	Leaderboard []PlayerSnapshot `json:"leaderboard"`
}

// NextQuestionPayload is the payload for a next-question event.
type NextQuestionPayload struct {
	Question      string `json:"question"`
	TimeRemaining int    `json:"time_remaining"`
}

// GameFinishedPayload is the payload for a game-finished event.
type GameFinishedPayload struct {
	FinalLeaderboard []PlayerSnapshot `json:"final_leaderboard"`
}

// SessionSnapshot is the read-only view of a session returned by
// get-session acks.
type SessionSnapshot struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Players       []PlayerSnapshot `json:"players"`
	Phase         models.Phase     `json:"status"`
	TimeRemaining int              `json:"time_remaining"`
}

// SnapshotPlayers converts players to their wire form, preserving order.
func SnapshotPlayers(players []*models.Player) []PlayerSnapshot {
	out := make([]PlayerSnapshot, len(players))
	for i, p := range players {
		out[i] = PlayerSnapshot{ID: p.ID, Nickname: p.Nickname, Score: p.Score}
	}
	return out
}
