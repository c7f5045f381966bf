package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type HealthStatus struct {
	Healthy            bool      `json:"healthy"`
	CoordinatorRunning bool      `json:"coordinator_running"`
	EventBusConnected  bool      `json:"event_bus_connected"`
	ActiveConnections  int       `json:"active_connections"`
	EventsPublished    uint64    `json:"events_published"`
	PendingEvents      int       `json:"pending_events"`
	LastEventTime      time.Time `json:"last_event_time"`
	Errors             []string  `json:"errors"`
}

type HealthChecker struct {
	connections *ConnectionManager
	coordinator CoordinatorStats
	events      EventStats
}

func NewHealthChecker(cm *ConnectionManager, coordinator CoordinatorStats, ev EventStats) *HealthChecker {
	return &HealthChecker{connections: cm, coordinator: coordinator, events: ev}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:           true,
		EventBusConnected: true,
		Errors:            []string{},
	}

	if h.connections != nil {
		status.ActiveConnections = h.connections.Stats().Active
	}

	// a round trip through the inbox proves the coordinator loop is alive
	if h.coordinator != nil {
		if _, err := h.coordinator.Stats(ctx); err != nil {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("coordinator unavailable: %v", err))
		} else {
			status.CoordinatorRunning = true
		}
	}

	if h.events != nil {
		stats := h.events.Stats()
		status.EventsPublished = stats.Published
		status.PendingEvents = stats.Pending
		status.LastEventTime = stats.LastEvent

		status.EventBusConnected = h.events.Connected()
		if !status.EventBusConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
