package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/blitz/go/internal/game"
	"github.com/mcdev12/blitz/go/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Submitter accepts messages for the game coordinator
type Submitter interface {
	Submit(ctx context.Context, msg game.Msg) error
}

// ConnectionManager owns the WebSocket connections of all players. It only
// moves frames; every game decision is made by the coordinator.
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	upgrader    websocket.Upgrader
	config      ConnectionConfig
	coordinator Submitter

	accepted  atomic.Uint64
	slowDrops atomic.Uint64
	malformed atomic.Uint64
}

// Connection is one player's WebSocket. It implements game.Outbox.
type Connection struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	manager *ConnectionManager

	connectedAt time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	SubmitTimeout   time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		SubmitTimeout:   5 * time.Second,
		MaxMessageSize:  8192,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      64,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// ConnectionStats is a snapshot of the connection counters
type ConnectionStats struct {
	Active    int    `json:"active"`
	Accepted  uint64 `json:"accepted"`
	SlowDrops uint64 `json:"slow_drops"`
	Malformed uint64 `json:"malformed_frames"`
}

func NewConnectionManager(config ConnectionConfig, coordinator Submitter) *ConnectionManager {
	def := DefaultConnectionConfig()
	if config.SendBuffer <= 0 {
		config.SendBuffer = def.SendBuffer
	}
	if config.PingInterval <= 0 {
		config.PingInterval = def.PingInterval
	}
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = def.SubmitTimeout
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = def.CheckOrigin
	}

	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		coordinator: coordinator,
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and starts its pumps
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		id:          uuid.NewString(),
		conn:        conn,
		send:        make(chan []byte, cm.config.SendBuffer),
		manager:     cm,
		connectedAt: time.Now(),
		closed:      make(chan struct{}),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.id).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.id] = conn
	cm.accepted.Add(1)

	log.Debug().
		Str("connection_id", conn.id).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn.id]; exists {
		delete(cm.connections, conn.id)
		log.Info().
			Str("connection_id", conn.id).
			Dur("connected_for", time.Since(conn.connectedAt)).
			Msg("connection unregistered")
	}
}

// CloseAll closes every open connection. Each close still reaches the
// coordinator as a disconnect through the read pump.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, c := range cm.connections {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()

	for _, c := range conns {
		c.close()
	}
	log.Info().Int("connections", len(conns)).Msg("closed all connections")
}

func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	active := len(cm.connections)
	cm.mu.RUnlock()

	return ConnectionStats{
		Active:    active,
		Accepted:  cm.accepted.Load(),
		SlowDrops: cm.slowDrops.Load(),
		Malformed: cm.malformed.Load(),
	}
}

func (c *Connection) ID() string { return c.id }

// Send queues frame without blocking. A connection whose buffer is full is
// too slow to keep up with the clock and gets closed.
func (c *Connection) Send(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	case <-c.closed:
		return false
	default:
		c.manager.slowDrops.Add(1)
		log.Warn().
			Str("connection_id", c.id).
			Msg("connection send buffer full, closing connection")
		c.close()
		return false
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.closed:
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump decodes client frames for the coordinator. Its exit is the only
// place a disconnect is reported, so the coordinator hears it exactly once.
func (c *Connection) readPump() {
	defer func() {
		c.manager.unregisterConnection(c)
		c.close()
		c.submitDisconnect()
	}()

	c.conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		c.handleClientMessage(message)
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}

func (c *Connection) handleClientMessage(message []byte) {
	msg, err := protocol.Decode(message)
	if err != nil {
		c.manager.malformed.Add(1)
		log.Warn().
			Err(err).
			Str("connection_id", c.id).
			Int("size", len(message)).
			Msg("dropping malformed frame")
		return
	}
	c.submit(game.Inbound{Outbox: c, Message: msg})
}

func (c *Connection) submit(msg game.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), c.manager.config.SubmitTimeout)
	defer cancel()
	c.logSubmitError(c.manager.coordinator.Submit(ctx, msg))
}

// submitDisconnect has no deadline: losing it would leave the player's name
// registered to a dead connection. It only gives up once the coordinator stops.
func (c *Connection) submitDisconnect() {
	c.logSubmitError(c.manager.coordinator.Submit(context.Background(), game.Disconnect{ConnID: c.id}))
}

func (c *Connection) logSubmitError(err error) {
	if err == nil {
		return
	}
	ev := log.Warn()
	if errors.Is(err, game.ErrCoordinatorStopped) {
		ev = log.Debug()
	}
	ev.Err(err).Str("connection_id", c.id).Msg("coordinator did not accept message")
}
