package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clarencepanto/stockflow-api-backend/cmd/server"
	"github.com/clarencepanto/stockflow-api-backend/internal/auth"
	"github.com/clarencepanto/stockflow-api-backend/internal/config"
	"github.com/clarencepanto/stockflow-api-backend/internal/eventbus"
	"github.com/clarencepanto/stockflow-api-backend/internal/observability"
	"github.com/clarencepanto/stockflow-api-backend/internal/storage"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracingSDK(ctx, observability.TracingConfig{
		ServiceName: cfg.AppName,
		Endpoint:    cfg.OtelEndpoint,
		Insecure:    cfg.OtelInsecure,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	db, err := storage.NewPostgresDB(storage.PostgresConfig{
		ConnStr:      cfg.PostgresConnStr(),
		MaxOpenConns: cfg.DBMaxOpenConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	if err := storage.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	srvCfg := &server.ServerConfig{
		Addr:              cfg.ServerAddr,
		DB:                db,
		TokenManager:      auth.NewTokenService(cfg.AccessTokenSecret, cfg.AccessTokenExpiryInSecs),
		EventEngineBuffer: cfg.EventEngineBuffer,
		ListenerBuffer:    cfg.ListenerBuffer,
		ShutdownTracing:   shutdownTracing,
	}

	if cfg.RabbitMQURL != "" {
		broker, err := eventbus.NewRabbitMQPublisher(eventbus.RabbitMQConfig{
			URL:          cfg.RabbitMQURL,
			ExchangeName: cfg.EventsExchangeName,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
		}
		srvCfg.Broker = broker
	} else {
		log.Info().Msg("RABBITMQ_URL not set, events stay in process")
	}

	if err := server.NewServer(srvCfg).Run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
