package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/blankparty/hackbox/internal/game"
	"github.com/blankparty/hackbox/internal/game/events"
	"github.com/blankparty/hackbox/internal/models"
)

// Engine is what the gateway needs from the game engine.
type Engine interface {
	CreateSession(ctx context.Context, name string) string
	JoinSession(ctx context.Context, sessionID, playerID, nickname string) (*models.Player, error)
	StartGame(ctx context.Context, sessionID string)
	SubmitAnswer(ctx context.Context, sessionID, playerID, text string)
	SubmitVote(ctx context.Context, sessionID, voterID, answerOwnerID string)
	GetSession(ctx context.Context, sessionID string) (*events.SessionSnapshot, error)
	Disconnect(ctx context.Context, playerID string)
}

// MessageHandler dispatches inbound websocket frames to the engine and
// writes acks back on the requesting connection.
type MessageHandler struct {
	engine            Engine
	connectionManager *ConnectionManager
}

// NewMessageHandler wires the dispatcher into the connection manager's
// message and disconnect hooks.
func NewMessageHandler(engine Engine, cm *ConnectionManager) *MessageHandler {
	h := &MessageHandler{engine: engine, connectionManager: cm}
	cm.SetMessageHandler(h.Handle)
	cm.SetDisconnectHandler(func(playerID string) {
		h.engine.Disconnect(context.Background(), playerID)
	})
	return h
}

// Handle processes one inbound frame. Malformed frames are dropped; slow
// networks redeliver stale messages and the engine guards already ignore
// them.
func (h *MessageHandler) Handle(conn *Connection, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", conn.ID).
			Msg("dropping malformed frame")
		return
	}

	ctx := context.Background()

	switch frame.Type {
	case MsgCreateSession:
		var req CreateSessionData
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return
		}
		sessionID := h.engine.CreateSession(ctx, req.Name)
		h.sendAck(conn, frame.RequestID, CreateSessionAck{Success: true, SessionID: sessionID})

	case MsgJoinSession:
		var req JoinSessionData
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return
		}
		// Subscribe before joining so the roster broadcast for this join
		// already reaches the joiner; unwind if the join is rejected.
		h.connectionManager.JoinChannel(conn, req.SessionID)
		player, err := h.engine.JoinSession(ctx, req.SessionID, conn.ID, req.Nickname)
		if err != nil {
			h.connectionManager.LeaveChannel(conn, req.SessionID)
			h.sendAck(conn, frame.RequestID, JoinSessionAck{Success: false, Error: ackError(err)})
			return
		}
		h.sendAck(conn, frame.RequestID, JoinSessionAck{Success: true, Player: player})

	case MsgStartGame:
		var req StartGameData
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return
		}
		h.engine.StartGame(ctx, req.SessionID)

	case MsgSubmitAnswer:
		var req SubmitAnswerData
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return
		}
		h.engine.SubmitAnswer(ctx, req.SessionID, conn.ID, req.Answer)

	case MsgSubmitVote:
		var req SubmitVoteData
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return
		}
		h.engine.SubmitVote(ctx, req.SessionID, conn.ID, req.AnswerID)

	case MsgGetSession:
		var req GetSessionData
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return
		}
		snapshot, err := h.engine.GetSession(ctx, req.SessionID)
		if err != nil {
			h.sendAck(conn, frame.RequestID, GetSessionAck{Success: false, Error: ackError(err)})
			return
		}
		h.sendAck(conn, frame.RequestID, GetSessionAck{Success: true, Session: snapshot})

	default:
		log.Debug().
			Str("connection_id", conn.ID).
			Str("type", frame.Type).
			Msg("unknown frame type")
	}
}

// sendAck writes an ack frame on the requesting connection, best-effort.
func (h *MessageHandler) sendAck(conn *Connection, requestID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to marshal ack")
		return
	}
	frame, err := json.Marshal(Frame{Type: MsgAck, RequestID: requestID, Data: data})
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to marshal ack frame")
		return
	}

	select {
	case conn.Send <- frame:
	default:
		log.Warn().Str("connection_id", conn.ID).Msg("send buffer full, dropping ack")
	}
}

// ackError maps engine errors to the strings clients display.
func ackError(err error) string {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, game.ErrNicknameTaken):
		return "Nickname already taken"
	default:
		return "Internal error"
	}
}

// WebSocketHandler serves the websocket endpoint and the stats endpoint.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates the HTTP-facing websocket handler.
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm}
}

// HandleGameConnection upgrades a client to a websocket. Session membership
// is established later by a join-session frame.
func (h *WebSocketHandler) HandleGameConnection(w http.ResponseWriter, r *http.Request) {
	if _, err := h.connectionManager.UpgradeConnection(w, r); err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
	}
}

// HandleConnectionStats reports connection counts.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	connections, channels := h.connectionManager.Stats()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"total_connections":%d,"active_sessions":%d}`, connections, channels)
}

// RegisterRoutes registers the websocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/game", h.HandleGameConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
