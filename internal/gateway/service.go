package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service bundles the gateway pieces: connection manager, websocket
// endpoint, inbound dispatcher, and the optional NATS bridge.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	messageHandler    *MessageHandler
	bridge            *NATSBridge // nil in local broadcast mode
}

// NewService assembles the gateway around an already wired engine.
func NewService(cm *ConnectionManager, messageHandler *MessageHandler, bridge *NATSBridge) *Service {
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		messageHandler:    messageHandler,
		bridge:            bridge,
	}
}

// Start runs the broadcast loop and, when NATS is configured, the event
// consumer. Blocks until the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("nats", s.bridge != nil).Msg("starting game gateway service")

	go s.connectionManager.Start(ctx)

	if s.bridge != nil {
		go func() {
			if err := s.bridge.StartConsumer(ctx, s.connectionManager); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("game gateway service shutting down")
	if s.bridge != nil {
		s.bridge.Close()
	}
	return nil
}

// RegisterRoutes registers the websocket HTTP routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("game gateway routes registered")
}

// Stats returns connection counts.
func (s *Service) Stats() (totalConnections, activeSessions int) {
	return s.connectionManager.Stats()
}
