package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcdev12/blitz/go/internal/events"
	"github.com/mcdev12/blitz/go/internal/game"
	"github.com/rs/zerolog/log"
)

// CoordinatorStats exposes the coordinator's table sizes
type CoordinatorStats interface {
	Stats(ctx context.Context) (game.Stats, error)
}

// EventStats exposes the event dispatcher's counters
type EventStats interface {
	Stats() events.DispatcherStats
	Connected() bool
}

// WebSocketHandler serves the player WebSocket endpoint and the stats API
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	coordinator       CoordinatorStats
	events            EventStats
}

func NewWebSocketHandler(cm *ConnectionManager, coordinator CoordinatorStats, ev EventStats) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		coordinator:       coordinator,
		events:            ev,
	}
}

// HandleConnection upgrades a player connection. Players identify
// themselves with their first frame, not with the HTTP request.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.connectionManager.UpgradeConnection(w, r); err != nil {
		// the upgrader has already written an error response
		log.Warn().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("failed to upgrade WebSocket connection")
	}
}

type statsResponse struct {
	Connections ConnectionStats         `json:"connections"`
	Game        *game.Stats             `json:"game,omitempty"`
	Events      *events.DispatcherStats `json:"events,omitempty"`
}

// HandleStats returns connection, game and event counters as JSON
func (h *WebSocketHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := statsResponse{Connections: h.connectionManager.Stats()}

	status := http.StatusOK
	if h.coordinator != nil {
		gs, err := h.coordinator.Stats(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to read coordinator stats")
			status = http.StatusServiceUnavailable
		} else {
			resp.Game = &gs
		}
	}
	if h.events != nil {
		es := h.events.Stats()
		resp.Events = &es
	}

	writeJSON(w, status, resp)
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.HandleConnection)
	mux.HandleFunc("GET /api/stats", h.HandleStats)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}
