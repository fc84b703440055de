package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/blankparty/hackbox/internal/game/events"
)

// JetStreamConfig holds configuration for the NATS event bridge.
type JetStreamConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectPrefix string
	MaxAge        time.Duration // events are ephemeral party state
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultJetStreamConfig returns the stock bridge settings. ConsumerName
// must be unique per gateway instance so every instance sees every event.
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "GAME_EVENTS",
		ConsumerName:  "game-gateway",
		SubjectPrefix: "game.events",
		MaxAge:        5 * time.Minute,
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 1000,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSBridge implements game.Broadcaster by publishing events to JetStream
// and, via StartConsumer, fanning consumed events out to local websocket
// connections. With several gateway instances behind a load balancer this
// keeps every instance's clients in sync.
type NATSBridge struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

// NewNATSBridge connects to NATS and ensures the event stream exists.
func NewNATSBridge(ctx context.Context, config JetStreamConfig) (*NATSBridge, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc, jetstream.WithPublishAsyncErrHandler(func(js jetstream.JetStream, msg *nats.Msg, err error) {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("async publish failed")
	}))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      config.StreamName,
		Subjects:  []string{config.SubjectPrefix + ".>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    config.MaxAge,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return &NATSBridge{nc: nc, js: js, config: config}, nil
}

// PublishToSession publishes an event on the session's subject. Publishing
// is async so the engine never waits on the broker.
func (b *NATSBridge) PublishToSession(ctx context.Context, sessionID string, typ events.EventType, payload any) {
	b.publish(sessionID, fmt.Sprintf("%s.session.%s", b.config.SubjectPrefix, sessionID), typ, payload)
}

// PublishToAll publishes an event on the all-channels subject.
func (b *NATSBridge) PublishToAll(ctx context.Context, typ events.EventType, payload any) {
	b.publish("", b.config.SubjectPrefix+".all", typ, payload)
}

func (b *NATSBridge) publish(sessionID, subject string, typ events.EventType, payload any) {
	data, ok := marshalEnvelope(sessionID, typ, payload)
	if !ok {
		return
	}
	if _, err := b.js.PublishAsync(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to queue publish")
	}
}

// StartConsumer consumes game events from JetStream and broadcasts them to
// this instance's websocket connections. Blocks until the context is done.
func (b *NATSBridge) StartConsumer(ctx context.Context, cm *ConnectionManager) error {
	stream, err := b.js.Stream(ctx, b.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          b.config.ConsumerName,
		Durable:       b.config.ConsumerName,
		Description:   "game gateway websocket fan-out",
		FilterSubject: b.config.SubjectPrefix + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    b.config.MaxDeliver,
		AckWait:       b.config.AckWait,
		MaxAckPending: b.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("stream", b.config.StreamName).
		Str("consumer", b.config.ConsumerName).
		Msg("starting JetStream event consumer")

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := b.fanOut(cm, msg.Data()); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to fan out event")
			if nakErr := msg.Nak(); nakErr != nil {
				log.Error().Err(nakErr).Msg("failed to NAK message")
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	<-ctx.Done()
	log.Info().Msg("event consumer shutting down")
	return nil
}

// fanOut routes one consumed event to the right local channel.
func (b *NATSBridge) fanOut(cm *ConnectionManager, data []byte) error {
	var envelope events.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}

	if envelope.SessionID == "" {
		cm.BroadcastToAll(data)
	} else {
		cm.BroadcastToSession(envelope.SessionID, data)
	}
	return nil
}

// Close tears down the NATS connection.
func (b *NATSBridge) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}
