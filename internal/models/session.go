package models

import (
	"sync"
)

// Phase defines the lifecycle state of a game session.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseAnswering Phase = "answering"
	PhaseVoting    Phase = "voting"
	PhaseResults   Phase = "results"
	PhaseFinished  Phase = "finished"
)

// TimerHandle is a cancellable handle to the phase timer currently driving a
// session. Stopping it is idempotent.
type TimerHandle interface {
	Stop()
}

// Player represents one connected participant in a session. The ID is the
// websocket connection ID.
type Player struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	Score     int    `json:"score"`
	SessionID string `json:"session_id"`
}

// Answer is one player's submission for the current round.
type Answer struct {
	PlayerID string `json:"player_id"`
	Text     string `json:"answer"`
	Votes    int    `json:"votes"`
}

// Question is a fill-in-the-blank prompt.
type Question struct {
	ID       int64  `json:"id"`
	Text     string `json:"question"`
	Category string `json:"category"`
}

// Session is one running game instance. It is owned by the session registry;
// all mutation happens through the engine while holding the session lock.
type Session struct {
	mu sync.Mutex

	ID              string
	Name            string
	Players         []*Player
	Phase           Phase
	CurrentQuestion *Question
	Answers         []*Answer
	TimeRemaining   int

	// Timer is the handle to the running phase timer, if any. Replaced on
	// every phase change and stopped when the session is destroyed.
	Timer TimerHandle
}

// NewSession returns a session in the waiting phase with no players.
func NewSession(id, name string) *Session {
	return &Session{
		ID:      id,
		Name:    name,
		Players: []*Player{},
		Phase:   PhaseWaiting,
		Answers: []*Answer{},
	}
}

// Lock serializes access to the session state. Each session has its own
// lock; there is no global lock across sessions.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// PlayerByID returns the player with the given ID, or nil. Caller must hold
// the session lock.
func (s *Session) PlayerByID(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// AnswerByOwner returns the current-round answer owned by the given player,
// or nil. Caller must hold the session lock.
func (s *Session) AnswerByOwner(playerID string) *Answer {
	for _, a := range s.Answers {
		if a.PlayerID == playerID {
			return a
		}
	}
	return nil
}

// HasNickname reports whether the nickname is already taken in this session.
// Nicknames are case-sensitive. Caller must hold the session lock.
func (s *Session) HasNickname(nickname string) bool {
	for _, p := range s.Players {
		if p.Nickname == nickname {
			return true
		}
	}
	return false
}

// RemovePlayer removes the player with the given ID, preserving the join
// order of the rest. Returns the removed player, or nil if absent. Caller
// must hold the session lock.
func (s *Session) RemovePlayer(id string) *Player {
	for i, p := range s.Players {
		if p.ID == id {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			return p
		}
	}
	return nil
}
