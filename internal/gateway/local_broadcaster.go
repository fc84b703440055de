package gateway

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/blankparty/hackbox/internal/game/events"
)

// LocalBroadcaster implements game.Broadcaster by fanning events straight
// out to this process's websocket connections. Used for single-node
// deployments; multi-instance setups publish through NATS instead.
type LocalBroadcaster struct {
	connectionManager *ConnectionManager
}

// NewLocalBroadcaster creates an in-process broadcaster.
func NewLocalBroadcaster(cm *ConnectionManager) *LocalBroadcaster {
	return &LocalBroadcaster{connectionManager: cm}
}

// PublishToSession delivers an event to the session's channel.
func (b *LocalBroadcaster) PublishToSession(ctx context.Context, sessionID string, typ events.EventType, payload any) {
	data, ok := marshalEnvelope(sessionID, typ, payload)
	if !ok {
		return
	}
	b.connectionManager.BroadcastToSession(sessionID, data)
}

// PublishToAll delivers an event to every connected client.
func (b *LocalBroadcaster) PublishToAll(ctx context.Context, typ events.EventType, payload any) {
	data, ok := marshalEnvelope("", typ, payload)
	if !ok {
		return
	}
	b.connectionManager.BroadcastToAll(data)
}

func marshalEnvelope(sessionID string, typ events.EventType, payload any) ([]byte, bool) {
	envelope, err := events.New(sessionID, typ, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to build event envelope")
		return nil, false
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to marshal event envelope")
		return nil, false
	}
	return data, true
}
