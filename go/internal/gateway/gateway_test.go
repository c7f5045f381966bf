package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/blitz/go/internal/events"
	"github.com/mcdev12/blitz/go/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv        *httptest.Server
	service    *Service
	dispatcher *events.Dispatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	dispatcher := events.NewDispatcher(events.LogPublisher{}, events.DefaultDispatcherConfig())
	coordinator := game.NewCoordinator(game.Options{
		Clock:  clockwork.NewFakeClock(),
		Events: dispatcher,
		Coin:   func() bool { return true },
	})
	go coordinator.Run(ctx)
	go dispatcher.Run(ctx)

	service := NewService(DefaultConfig(), coordinator, dispatcher)
	srv := httptest.NewServer(service.Handler())

	t.Cleanup(func() {
		service.Shutdown()
		srv.Close()
		cancel()
	})
	return &testServer{srv: srv, service: service, dispatcher: dispatcher}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (ts *testServer) getJSON(t *testing.T, path string, into any) int {
	t.Helper()
	resp, err := http.Get(ts.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	return resp.StatusCode
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// readUntil returns the first frame carrying key, skipping anything else
func readUntil(t *testing.T, conn *websocket.Conn, key string) (frame []byte, body json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %q", key)

		var obj map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &obj))
		if v, ok := obj[key]; ok {
			return data, v
		}
	}
}

func lobbyNames(t *testing.T, body json.RawMessage) []string {
	t.Helper()
	var opps []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(body, &opps))
	names := make([]string, 0, len(opps))
	for _, o := range opps {
		names = append(names, o.Name)
	}
	return names
}

func TestGateway_EndToEnd(t *testing.T) {
	ts := newTestServer(t)

	ada := ts.dial(t)
	send(t, ada, `{"name":"ada","settings":{"time":60000,"increment":0,"color":"white"}}`)
	_, body := readUntil(t, ada, "availableOpponents")
	assert.Equal(t, []string{"ada"}, lobbyNames(t, body))

	bob := ts.dial(t)
	send(t, bob, `{"name":"bob","settings":{"time":30000,"increment":0,"color":"random"}}`)
	_, body = readUntil(t, bob, "availableOpponents")
	assert.Equal(t, []string{"ada", "bob"}, lobbyNames(t, body))

	// malformed frames are dropped without closing the connection
	send(t, bob, `not json`)

	send(t, bob, `{"joinRequest":{"nameToJoin":"ada","by":"bob"}}`)
	_, body = readUntil(t, ada, "matchAttributes")
	assert.JSONEq(t, `{"opponentName":"bob","yourColor":"white","time":60000,"gameColorType":"white"}`, string(body))
	_, body = readUntil(t, bob, "matchAttributes")
	assert.JSONEq(t, `{"opponentName":"ada","yourColor":"black","time":60000,"gameColorType":"white"}`, string(body))

	move := `{"move":{"by":"ada","isFirst":true,"from":"e2","to":"e4","promotion":null}}`
	send(t, ada, move)
	_, body = readUntil(t, bob, "clockUpdate")
	assert.JSONEq(t, `{"white":60000,"black":60000}`, string(body))
	frame, _ := readUntil(t, bob, "move")
	assert.True(t, bytes.Equal([]byte(move), frame), "move relayed verbatim, got %s", frame)

	var stats statsResponse
	require.Equal(t, http.StatusOK, ts.getJSON(t, "/api/stats", &stats))
	assert.Equal(t, 2, stats.Connections.Active)
	assert.Equal(t, uint64(1), stats.Connections.Malformed)
	require.NotNil(t, stats.Game)
	assert.Equal(t, game.Stats{Identities: 2, Available: 0, Matches: 1, Sessions: 1, Ticking: 1}, *stats.Game)

	var health HealthStatus
	require.Equal(t, http.StatusOK, ts.getJSON(t, "/health", &health))
	assert.True(t, health.Healthy)
	assert.True(t, health.CoordinatorRunning)
	assert.Equal(t, 2, health.ActiveConnections)

	require.NoError(t, ada.Close())
	_, body = readUntil(t, bob, "notification")
	assert.JSONEq(t, `"opponent disconnected"`, string(body))

	require.Eventually(t, func() bool {
		return ts.service.Stats().Active == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_DuplicateName(t *testing.T) {
	ts := newTestServer(t)

	first := ts.dial(t)
	send(t, first, `{"name":"ada","settings":{"time":60000,"increment":0,"color":"white"}}`)
	readUntil(t, first, "availableOpponents")

	second := ts.dial(t)
	send(t, second, `{"name":"ada","settings":{"time":60000,"increment":0,"color":"white"}}`)
	_, body := readUntil(t, second, "notification")
	assert.JSONEq(t, `"duplicate"`, string(body))
}

func TestGateway_DisconnectSurvivesStalledCoordinator(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// a one-slot inbox with nobody reading it yet
	coordinator := game.NewCoordinator(game.Options{Clock: clockwork.NewFakeClock(), InboxSize: 1})
	cfg := DefaultConfig()
	cfg.ConnectionConfig.SubmitTimeout = 50 * time.Millisecond
	service := NewService(cfg, coordinator, nil)
	srv := httptest.NewServer(service.Handler())
	ts := &testServer{srv: srv, service: service}
	t.Cleanup(func() {
		service.Shutdown()
		srv.Close()
	})

	ada := ts.dial(t)
	send(t, ada, `{"name":"ada","settings":{"time":60000,"increment":0,"color":"white"}}`)
	require.NoError(t, ada.Close())
	require.Eventually(t, func() bool {
		return service.Stats().Active == 0
	}, 2*time.Second, 10*time.Millisecond)

	// the disconnect waits far longer than an ordinary frame would
	time.Sleep(4 * cfg.ConnectionConfig.SubmitTimeout)
	go coordinator.Run(ctx)

	require.Eventually(t, func() bool {
		stats, err := coordinator.Stats(ctx)
		return err == nil && stats.Identities == 0
	}, 2*time.Second, 10*time.Millisecond)

	again := ts.dial(t)
	send(t, again, `{"name":"ada","settings":{"time":60000,"increment":0,"color":"white"}}`)
	_, body := readUntil(t, again, "availableOpponents")
	assert.Equal(t, []string{"ada"}, lobbyNames(t, body))
}

func TestGateway_HealthReportsStoppedCoordinator(t *testing.T) {
	coordinator := game.NewCoordinator(game.Options{Clock: clockwork.NewFakeClock()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		coordinator.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	service := NewService(DefaultConfig(), coordinator, nil)
	srv := httptest.NewServer(service.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.False(t, health.Healthy)
	assert.False(t, health.CoordinatorRunning)
	require.Len(t, health.Errors, 1)
	assert.Contains(t, health.Errors[0], "coordinator stopped")
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "wildcard", allowed: []string{"*"}, origin: "https://evil.example.com", want: true},
		{name: "listed origin", allowed: []string{"https://play.example.com"}, origin: "https://play.example.com", want: true},
		{name: "unlisted origin", allowed: []string{"https://play.example.com"}, origin: "https://evil.example.com", want: false},
		{name: "no origin header", allowed: []string{"https://play.example.com"}, origin: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(r))
		})
	}
}
