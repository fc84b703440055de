package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager owns all websocket connections and the per-session
// broadcast channels. A connection joins a session channel when its player
// joins that session; events published to the channel reach every member.
type ConnectionManager struct {
	mu sync.RWMutex
	// All live connections, keyed by connection ID (= player ID).
	connections map[string]*Connection
	// Connections subscribed to each session's channel.
	sessionChannels map[string]map[*Connection]bool

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan broadcastMessage

	// onMessage handles an inbound client frame; onDisconnect fires when a
	// connection's read pump exits.
	onMessage    func(conn *Connection, data []byte)
	onDisconnect func(playerID string)
}

// Connection is one client's websocket. Its ID doubles as the player ID for
// whichever session the client joins.
type Connection struct {
	ID      string
	Send    chan []byte
	Conn    *websocket.Conn
	Manager *ConnectionManager

	ConnectedAt time.Time

	// done ends the write pump. Send itself is never closed: acks and
	// broadcasts race connection teardown, and a late send must land in
	// the buffer rather than panic.
	done      chan struct{}
	closeOnce sync.Once
}

// close signals the write pump to exit. Idempotent.
func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ConnectionConfig holds websocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type broadcastMessage struct {
	sessionID string // empty means all channels
	data      []byte
}

// DefaultConnectionConfig returns the stock websocket settings.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a websocket connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections:     make(map[string]*Connection),
		sessionChannels: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// SetMessageHandler installs the inbound frame handler. Must be called
// before the first upgrade.
func (cm *ConnectionManager) SetMessageHandler(h func(conn *Connection, data []byte)) {
	cm.onMessage = h
}

// SetDisconnectHandler installs the hook fired when a connection drops.
func (cm *ConnectionManager) SetDisconnectHandler(h func(playerID string)) {
	cm.onDisconnect = h
}

// Start processes broadcast messages until the context is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a websocket and starts its
// pumps. The returned connection carries the freshly minted player ID.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade connection: %w", err)
	}

	conn := &Connection{
		ID:          uuid.New().String(),
		Send:        make(chan []byte, 256),
		Conn:        ws,
		Manager:     cm,
		ConnectedAt: time.Now(),
		done:        make(chan struct{}),
	}

	cm.mu.Lock()
	cm.connections[conn.ID] = conn
	cm.mu.Unlock()

	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("websocket connection established")

	return conn, nil
}

// LeaveChannel removes a connection from a session's broadcast channel.
// Used to unwind a subscription when a join is rejected.
func (cm *ConnectionManager) LeaveChannel(conn *Connection, sessionID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	channel := cm.sessionChannels[sessionID]
	if channel == nil {
		return
	}
	delete(channel, conn)
	if len(channel) == 0 {
		delete(cm.sessionChannels, sessionID)
	}
}

// JoinChannel subscribes a connection to a session's broadcast channel.
func (cm *ConnectionManager) JoinChannel(conn *Connection, sessionID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.sessionChannels[sessionID] == nil {
		cm.sessionChannels[sessionID] = make(map[*Connection]bool)
	}
	cm.sessionChannels[sessionID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_id", sessionID).
		Int("channel_size", len(cm.sessionChannels[sessionID])).
		Msg("connection joined session channel")
}

// BroadcastToSession queues raw event data for every member of a session
// channel. Drops the message if the broadcast queue is full.
func (cm *ConnectionManager) BroadcastToSession(sessionID string, data []byte) {
	select {
	case cm.broadcastCh <- broadcastMessage{sessionID: sessionID, data: data}:
	default:
		log.Warn().Str("session_id", sessionID).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastToAll queues raw event data for every live connection.
func (cm *ConnectionManager) BroadcastToAll(data []byte) {
	select {
	case cm.broadcastCh <- broadcastMessage{data: data}:
	default:
		log.Warn().Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	cm.mu.RLock()
	var targets []*Connection
	if message.sessionID == "" {
		for _, conn := range cm.connections {
			targets = append(targets, conn)
		}
	} else {
		for conn := range cm.sessionChannels[message.sessionID] {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.Send <- message.data:
		default:
			// Connection is slow or dead, close it.
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}
}

// unregisterConnection removes a connection from the manager and every
// session channel it belongs to.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn.ID]; !exists {
		return
	}
	delete(cm.connections, conn.ID)
	conn.close()

	for sessionID, channel := range cm.sessionChannels {
		if channel[conn] {
			delete(channel, conn)
			if len(channel) == 0 {
				delete(cm.sessionChannels, sessionID)
			}
		}
	}

	log.Info().
		Str("connection_id", conn.ID).
		Msg("connection unregistered")
}

// Stats returns connection counts for the stats endpoint.
func (cm *ConnectionManager) Stats() (totalConnections, activeChannels int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections), len(cm.sessionChannels)
}

// writePump sends queued messages and pings to the websocket.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client frames and hands them to the message handler. When
// it exits the connection is unregistered and the disconnect hook fires,
// which removes the player from their session.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
		if c.Manager.onDisconnect != nil {
			c.Manager.onDisconnect(c.ID)
		}
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			break
		}

		if c.Manager.onMessage != nil {
			c.Manager.onMessage(c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
