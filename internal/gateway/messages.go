package gateway

import (
	"encoding/json"

	"github.com/blankparty/hackbox/internal/game/events"
	"github.com/blankparty/hackbox/internal/models"
)

// Inbound client frames. Every frame carries a type and, when the client
// expects an acknowledgment, a request_id the ack echoes back.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Client message types.
const (
	MsgCreateSession = "create-session"
	MsgJoinSession   = "join-session"
	MsgStartGame     = "start-game"
	MsgSubmitAnswer  = "submit-answer"
	MsgSubmitVote    = "submit-vote"
	MsgGetSession    = "get-session"
)

// MsgAck is the frame type for acknowledgments sent back to the requester.
const MsgAck = "ack"

type CreateSessionData struct {
	Name string `json:"name"`
}

type JoinSessionData struct {
	SessionID string `json:"session_id"`
	Nickname  string `json:"nickname"`
}

type StartGameData struct {
	SessionID string `json:"session_id"`
}

type SubmitAnswerData struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type SubmitVoteData struct {
	SessionID string `json:"session_id"`
	// AnswerID is the opaque ID presented with the voting options, i.e. the
	// answer owner's player ID.
	AnswerID string `json:"answer_id"`
}

type GetSessionData struct {
	SessionID string `json:"session_id"`
}

// Ack payloads.

type CreateSessionAck struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type JoinSessionAck struct {
	Success bool           `json:"success"`
	Player  *models.Player `json:"player,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type GetSessionAck struct {
	Success bool                    `json:"success"`
	Session *events.SessionSnapshot `json:"session,omitempty"`
	Error   string                  `json:"error,omitempty"`
}
