package gateway

import (
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Service is the player-facing gateway: WebSocket connections, stats and health
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	health            *HealthChecker
	allowedOrigins    []string
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	AllowedOrigins   []string
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		AllowedOrigins:   []string{"*"},
	}
}

// Coordinator is the part of the game coordinator the gateway talks to
type Coordinator interface {
	Submitter
	CoordinatorStats
}

// NewService wires the gateway to the coordinator. ev may be nil when no
// event dispatcher runs.
func NewService(config Config, coordinator Coordinator, ev EventStats) *Service {
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}
	config.ConnectionConfig.CheckOrigin = originChecker(config.AllowedOrigins)

	cm := NewConnectionManager(config.ConnectionConfig, coordinator)
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, coordinator, ev),
		health:            NewHealthChecker(cm, coordinator, ev),
		allowedOrigins:    config.AllowedOrigins,
	}
}

// RegisterRoutes registers the gateway HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	mux.Handle("GET /health", s.health)
	log.Info().Msg("gateway routes registered")
}

// Handler returns the full HTTP handler with CORS, served over h2c so
// plain-text HTTP/2 clients work alongside WebSocket upgrades.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: s.allowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

// Shutdown closes every player connection
func (s *Service) Shutdown() {
	s.connectionManager.CloseAll()
}

func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.Stats()
}
