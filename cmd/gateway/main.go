package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/blankparty/hackbox/internal/config"
	"github.com/blankparty/hackbox/internal/game"
	"github.com/blankparty/hackbox/internal/gamedb"
	"github.com/blankparty/hackbox/internal/gateway"
	"github.com/blankparty/hackbox/internal/questions"
	"github.com/blankparty/hackbox/internal/recorder"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	serverCfg := config.ServerFromEnv()
	dbCfg := config.DatabaseFromEnv()

	settings, err := config.LoadGameSettings(getEnv("GAME_SETTINGS", "game.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load game settings")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := gamedb.Open(dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := gamedb.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	questionRepo := questions.NewRepository(db)
	if count, err := questionRepo.Count(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to count questions")
	} else if count == 0 {
		log.Warn().Msg("question table is empty, run cmd/seed before starting games")
	}

	rec := recorder.New(db, recorder.DefaultConfig())
	if err := rec.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start recorder")
	}
	defer rec.Stop()

	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	// NATS fans events out across gateway instances; without it everything
	// stays in-process.
	var (
		broadcaster game.Broadcaster
		bridge      *gateway.NATSBridge
	)
	if serverCfg.NATSURL != "" {
		bridgeCfg := gateway.DefaultJetStreamConfig()
		bridgeCfg.URL = serverCfg.NATSURL
		bridgeCfg.ConsumerName = getEnv("GATEWAY_CONSUMER", bridgeCfg.ConsumerName)

		bridge, err = gateway.NewNATSBridge(ctx, bridgeCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		broadcaster = bridge
	} else {
		broadcaster = gateway.NewLocalBroadcaster(connectionManager)
	}

	registry := game.NewRegistry()
	engine := game.NewEngine(registry, questionRepo, rec, broadcaster, game.WithSettings(settings))
	messageHandler := gateway.NewMessageHandler(engine, connectionManager)
	gatewayService := gateway.NewService(connectionManager, messageHandler, bridge)

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		connections, sessions := gatewayService.Stats()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"service":"game-gateway","connections":%d,"active_sessions":%d,"registry_sessions":%d}`,
			connections, sessions, registry.Len())
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", serverCfg.Port),
		Handler:      c.Handler(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	time.Sleep(1 * time.Second)

	log.Info().Msg("game gateway shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
