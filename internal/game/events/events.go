package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of game event broadcast to clients.
type EventType string

const (
	EventTypePlayersUpdated EventType = "players-updated"
	EventTypeGameStarted    EventType = "game-started"
	EventTypeTimerUpdate    EventType = "timer-update"
	EventTypeVotingPhase    EventType = "voting-phase"
	EventTypeResults        EventType = "results"
	EventTypeNextQuestion   EventType = "next-question"
	EventTypeGameFinished   EventType = "game-finished"
)

// Envelope is the wire structure for all broadcast events. SessionID is
// empty for publish-to-all events.
type Envelope struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id,omitempty"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New builds an event envelope, marshaling the payload.
func New(sessionID string, typ EventType, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return &Envelope{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}
