package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/blitz/go/internal/config"
	"github.com/mcdev12/blitz/go/internal/events"
	"github.com/mcdev12/blitz/go/internal/game"
	"github.com/mcdev12/blitz/go/internal/gateway"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Publisher   events.Publisher
	Dispatcher  *events.Dispatcher
	Coordinator *game.Coordinator
	Gateway     *gateway.Service
}

func setupServices(ctx context.Context, cfg config.Config) (*Services, error) {
	// Event bus → dispatcher → coordinator → gateway

	var publisher events.Publisher = events.LogPublisher{}
	if cfg.NATS.Enabled {
		js, err := events.NewJetStreamPublisher(ctx, cfg.NATS.JetStream())
		if err != nil {
			return nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
		log.Info().
			Str("url", cfg.NATS.URL).
			Str("stream", cfg.NATS.StreamName).
			Msg("publishing game events to JetStream")
		publisher = js
	}

	dispatcher := events.NewDispatcher(publisher, cfg.NATS.Dispatcher())

	coordinator := game.NewCoordinator(game.Options{
		TickInterval: cfg.Clock.TickInterval,
		Events:       dispatcher,
	})

	conn := gateway.DefaultConnectionConfig()
	conn.SendBuffer = cfg.Server.SendBuffer
	gw := gateway.NewService(gateway.Config{
		ConnectionConfig: conn,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
	}, coordinator, dispatcher)

	return &Services{
		Publisher:   publisher,
		Dispatcher:  dispatcher,
		Coordinator: coordinator,
		Gateway:     gw,
	}, nil
}

// Close releases the event bus connection after the dispatcher has flushed
func (s *Services) Close() {
	if err := s.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close event publisher")
	}
}
