package game

import (
	"encoding/json"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/blitz/go/internal/events"
	"github.com/mcdev12/blitz/go/internal/protocol"
	"github.com/stretchr/testify/require"
)

// fakeOutbox records every frame. Tests drive the coordinator synchronously,
// so no locking is needed.
type fakeOutbox struct {
	id     string
	frames [][]byte
}

func newOutbox(id string) *fakeOutbox { return &fakeOutbox{id: id} }

func (f *fakeOutbox) ID() string { return f.id }

func (f *fakeOutbox) Send(frame []byte) bool {
	f.frames = append(f.frames, frame)
	return true
}

// values returns the body of every frame whose top-level key is key
func (f *fakeOutbox) values(t *testing.T, key string) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	for _, frame := range f.frames {
		var obj map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(frame, &obj), "frame %s", frame)
		if v, ok := obj[key]; ok {
			out = append(out, v)
		}
	}
	return out
}

func (f *fakeOutbox) count(t *testing.T, key string) int {
	t.Helper()
	return len(f.values(t, key))
}

func (f *fakeOutbox) last(t *testing.T, key string, into any) {
	t.Helper()
	vals := f.values(t, key)
	require.NotEmpty(t, vals, "no %q frame received by %s", key, f.id)
	require.NoError(t, json.Unmarshal(vals[len(vals)-1], into))
}

func (f *fakeOutbox) lastClock(t *testing.T) protocol.ClockState {
	t.Helper()
	var cs protocol.ClockState
	f.last(t, "clockUpdate", &cs)
	return cs
}

func (f *fakeOutbox) lastLobby(t *testing.T) []string {
	t.Helper()
	var opps []protocol.Opponent
	f.last(t, "availableOpponents", &opps)
	return opponentNames(opps)
}

func (f *fakeOutbox) reset() { f.frames = nil }

func opponentNames(opps []protocol.Opponent) []string {
	names := make([]string, 0, len(opps))
	for _, o := range opps {
		names = append(names, o.Name)
	}
	sort.Strings(names)
	return names
}

type recordingSink struct {
	events []events.Event
}

func (s *recordingSink) Enqueue(e events.Event) bool {
	s.events = append(s.events, e)
	return true
}

func (s *recordingSink) ofType(t events.EventType) []events.Event {
	var out []events.Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func decodePayload[T any](t *testing.T, e events.Event) T {
	t.Helper()
	var p T
	require.NoError(t, json.Unmarshal(e.Payload, &p))
	return p
}

// harness drives a Coordinator without its Run loop
type harness struct {
	t     *testing.T
	c     *Coordinator
	clock *clockwork.FakeClock
	sink  *recordingSink
	outs  map[string]*fakeOutbox
	conns int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := clockwork.NewFakeClock()
	sink := &recordingSink{}
	h := &harness{
		t:     t,
		clock: clock,
		sink:  sink,
		outs:  make(map[string]*fakeOutbox),
		c: NewCoordinator(Options{
			Clock:  clock,
			Events: sink,
			// joined player always gets white unless a test overrides it
			Coin: func() bool { return true },
		}),
	}
	t.Cleanup(h.c.clocks.StopAll)
	return h
}

func settings(ms, inc int64, mode protocol.ColorMode) protocol.Settings {
	return protocol.Settings{TimeMillis: ms, IncrementMillis: inc, Color: mode}
}

func (h *harness) announce(name string, s protocol.Settings) *fakeOutbox {
	h.conns++
	out := newOutbox(fmt.Sprintf("conn-%d", h.conns))
	h.c.handle(Inbound{Outbox: out, Message: protocol.Announce{Name: name, Settings: s}})
	if _, ok := h.outs[name]; !ok {
		h.outs[name] = out
	}
	return out
}

func (h *harness) send(name string, msg protocol.Message) {
	h.t.Helper()
	out, ok := h.outs[name]
	require.True(h.t, ok, "unknown player %s", name)
	h.c.handle(Inbound{Outbox: out, Message: msg})
}

func (h *harness) join(target, requester string) {
	h.send(requester, protocol.JoinRequest{NameToJoin: target, By: requester})
}

func (h *harness) move(name string, isFirst bool, san string) []byte {
	raw := []byte(fmt.Sprintf(`{"move":{"by":%q,"isFirst":%t,"san":%q}}`, name, isFirst, san))
	h.send(name, protocol.Move{By: name, IsFirst: isFirst, Raw: raw})
	return raw
}

func (h *harness) notify(name string, kind protocol.NotificationKind, moveCount int) {
	h.send(name, protocol.Notification{Kind: kind, By: name, MoveCount: moveCount})
}

func (h *harness) disconnect(name string) {
	h.t.Helper()
	out, ok := h.outs[name]
	require.True(h.t, ok, "unknown player %s", name)
	h.c.handle(Disconnect{ConnID: out.ID()})
	delete(h.outs, name)
}

// pair announces target and requester and joins them; target plays white
// unless its mode is black.
func (h *harness) pair(target, requester string, s protocol.Settings) *Session {
	h.t.Helper()
	h.announce(target, s)
	h.announce(requester, s)
	h.join(target, requester)
	sess, ok := h.c.clocks.SessionOf(target)
	require.True(h.t, ok, "no session after join")
	return sess
}

// advance moves the fake clock by d and handles the tick it produces
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	h.clock.Advance(d)
	select {
	case id := <-h.c.clocks.Ticks():
		h.c.handleTick(id)
	case <-time.After(time.Second):
		h.t.Fatalf("timed out waiting for clock tick")
	}
}

// drainTicks handles any tick that shows up within d
func (h *harness) drainTicks(d time.Duration) {
	deadline := time.After(d)
	for {
		select {
		case id := <-h.c.clocks.Ticks():
			h.c.handleTick(id)
		case <-deadline:
			return
		}
	}
}

func (h *harness) resetFrames() {
	for _, out := range h.outs {
		out.reset()
	}
}
