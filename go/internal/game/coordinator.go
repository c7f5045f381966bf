package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/blitz/go/internal/events"
	"github.com/mcdev12/blitz/go/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Msg is anything the coordinator goroutine consumes
type Msg interface{ isCoordinatorMsg() }

// Inbound is a decoded frame from a connection
type Inbound struct {
	Outbox  Outbox
	Message protocol.Message
}

// Disconnect reports that the transport closed a connection
type Disconnect struct {
	ConnID string
}

// GetStats asks for a snapshot of the tables
type GetStats struct {
	Reply chan Stats
}

func (Inbound) isCoordinatorMsg()    {}
func (Disconnect) isCoordinatorMsg() {}
func (GetStats) isCoordinatorMsg()   {}

var ErrCoordinatorStopped = errors.New("coordinator stopped")

// Options configures a Coordinator. Zero values select production defaults.
type Options struct {
	Clock        clockwork.Clock
	TickInterval time.Duration
	Events       events.Sink
	InboxSize    int
	// Coin decides random color assignment; true gives white to the player
	// being joined.
	Coin func() bool
}

// Coordinator owns all identity, match and session state. Inbound traffic,
// disconnects and clock ticks are handled one at a time on the Run goroutine,
// so none of the tables need locking.
type Coordinator struct {
	inbox chan Msg
	done  chan struct{}

	registry   *Registry
	matches    *MatchTable
	lobby      *Lobby
	clocks     *ClockAuthority
	matchmaker *Matchmaker
	relay      *Relay
	events     events.Sink
}

func NewCoordinator(opts Options) *Coordinator {
	if opts.InboxSize <= 0 {
		opts.InboxSize = 256
	}
	if opts.Events == nil {
		opts.Events = events.Discard
	}

	registry := NewRegistry()
	matches := NewMatchTable()
	lobby := NewLobby(registry, matches)
	clocks := NewClockAuthority(opts.Clock, opts.TickInterval, registry)

	return &Coordinator{
		inbox:      make(chan Msg, opts.InboxSize),
		done:       make(chan struct{}),
		registry:   registry,
		matches:    matches,
		lobby:      lobby,
		clocks:     clocks,
		matchmaker: NewMatchmaker(registry, matches, clocks, opts.Coin),
		relay:      NewRelay(registry, matches, clocks, lobby, opts.Events),
		events:     opts.Events,
	}
}

// Run processes messages until ctx is cancelled. All clocks are stopped on
// the way out.
func (c *Coordinator) Run(ctx context.Context) error {
	log.Info().Msg("coordinator started")
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			c.clocks.StopAll()
			log.Info().Int("sessions", c.clocks.Len()).Msg("coordinator shutting down")
			return nil
		case m := <-c.inbox:
			c.handle(m)
		case id := <-c.clocks.Ticks():
			c.handleTick(id)
		}
	}
}

// Submit queues msg for the coordinator, blocking while the inbox is full
func (c *Coordinator) Submit(ctx context.Context, msg Msg) error {
	select {
	case <-c.done:
		return ErrCoordinatorStopped
	default:
	}

	select {
	case c.inbox <- msg:
		return nil
	case <-c.done:
		return ErrCoordinatorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot taken on the coordinator goroutine
func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if err := c.Submit(ctx, GetStats{Reply: reply}); err != nil {
		return Stats{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-c.done:
		return Stats{}, ErrCoordinatorStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (c *Coordinator) handle(m Msg) {
	switch msg := m.(type) {
	case Inbound:
		c.handleInbound(msg)
	case Disconnect:
		c.handleDisconnect(msg.ConnID)
	case GetStats:
		msg.Reply <- c.stats()
	}
}

func (c *Coordinator) handleInbound(in Inbound) {
	if a, ok := in.Message.(protocol.Announce); ok {
		c.handleAnnounce(in.Outbox, a)
		return
	}

	sender, ok := c.registry.NameOf(in.Outbox.ID())
	if !ok {
		log.Debug().
			Str("connection_id", in.Outbox.ID()).
			Err(ErrConnectionUnknown).
			Msg("dropping message")
		return
	}

	switch msg := in.Message.(type) {
	case protocol.JoinRequest:
		c.handleJoin(msg.NameToJoin, sender)
	case protocol.Move:
		c.relay.Move(sender, msg)
	case protocol.Notification:
		c.relay.Notify(sender, msg)
	}
}

func (c *Coordinator) handleAnnounce(out Outbox, a protocol.Announce) {
	_, err := c.registry.Announce(a.Name, a.Settings, out)
	switch {
	case errors.Is(err, ErrDuplicateName):
		log.Info().Str("player", a.Name).Str("connection_id", out.ID()).Msg("duplicate name rejected")
		out.Send(protocol.Notice(protocol.NoticeDuplicate))
		return
	case err != nil:
		log.Warn().Err(err).Str("player", a.Name).Str("connection_id", out.ID()).Msg("announce ignored")
		return
	}

	log.Info().
		Str("player", a.Name).
		Str("connection_id", out.ID()).
		Int64("time_ms", a.Settings.TimeMillis).
		Int64("increment_ms", a.Settings.IncrementMillis).
		Str("color", string(a.Settings.Color)).
		Msg("player announced")
	c.lobby.Broadcast()
}

func (c *Coordinator) handleJoin(target, requester string) {
	s := c.matchmaker.RequestJoin(target, requester)
	if s == nil {
		return
	}
	c.lobby.Broadcast()
	c.relay.emit(events.EventTypeGameStarted, s, events.GameStartedPayload{
		White:           s.WhiteName,
		Black:           s.BlackName,
		InitialMillis:   s.Initial.Milliseconds(),
		IncrementMillis: s.Increment.Milliseconds(),
		ColorMode:       string(s.Mode),
		StartedAt:       c.clocks.clock.Now(),
	})
}

func (c *Coordinator) handleDisconnect(connID string) {
	name, ok := c.registry.NameOf(connID)
	if !ok {
		log.Debug().Str("connection_id", connID).Msg("anonymous connection closed")
		return
	}
	c.relay.Disconnect(name)
}

func (c *Coordinator) handleTick(id uuid.UUID) {
	s, ok := c.clocks.Lookup(id)
	if !ok {
		return
	}
	if flagged := c.clocks.Tick(s); flagged {
		c.relay.FlagFall(s)
	}
}

func (c *Coordinator) stats() Stats {
	return Stats{
		Identities: c.registry.Len(),
		Available:  len(c.lobby.Available()),
		Matches:    c.matches.Pairs(),
		Sessions:   c.clocks.Len(),
		Ticking:    c.clocks.TickingCount(),
	}
}
