package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/blitz/go/internal/protocol"
	"github.com/rs/zerolog/log"
)

// DefaultTickInterval is the cadence of clock broadcasts while a game runs
const DefaultTickInterval = time.Second

// tickHandle controls one ticker goroutine. stop may be called any number of
// times, before or after the goroutine has exited.
type tickHandle struct {
	once sync.Once
	done chan struct{}
}

func (h *tickHandle) stop() {
	h.once.Do(func() { close(h.done) })
}

// ClockAuthority owns every session and is the only writer of remaining
// times. All methods except the ticker goroutines run on the coordinator
// goroutine; the goroutines only report session IDs on Ticks.
type ClockAuthority struct {
	clock    clockwork.Clock
	interval time.Duration
	registry *Registry

	sessions map[uuid.UUID]*Session
	byName   map[string]uuid.UUID
	ticks    chan uuid.UUID
}

func NewClockAuthority(clock clockwork.Clock, interval time.Duration, registry *Registry) *ClockAuthority {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &ClockAuthority{
		clock:    clock,
		interval: interval,
		registry: registry,
		sessions: make(map[uuid.UUID]*Session),
		byName:   make(map[string]uuid.UUID),
		ticks:    make(chan uuid.UUID, 64),
	}
}

// Ticks delivers the ID of a ticking session once per interval
func (ca *ClockAuthority) Ticks() <-chan uuid.UUID { return ca.ticks }

// CreateSession opens an idle session indexed under both names. A previous
// session of either player is stopped and dropped.
func (ca *ClockAuthority) CreateSession(white, black string, initial, increment time.Duration, mode protocol.ColorMode) *Session {
	for _, name := range []string{white, black} {
		if old, ok := ca.SessionOf(name); ok {
			ca.Remove(old)
		}
	}

	s := &Session{
		ID:             uuid.New(),
		WhiteName:      white,
		BlackName:      black,
		Mode:           mode,
		Initial:        initial,
		Increment:      increment,
		WhiteRemaining: initial,
		BlackRemaining: initial,
		whiteBaseline:  initial,
		blackBaseline:  initial,
		IsWhiteTurn:    true,
		State:          StateIdle,
	}
	ca.sessions[s.ID] = s
	ca.byName[white] = s.ID
	ca.byName[black] = s.ID
	return s
}

// SessionOf resolves a player name to its session
func (ca *ClockAuthority) SessionOf(name string) (*Session, bool) {
	id, ok := ca.byName[name]
	if !ok {
		return nil, false
	}
	s, ok := ca.sessions[id]
	return s, ok
}

// Lookup resolves a session ID
func (ca *ClockAuthority) Lookup(id uuid.UUID) (*Session, bool) {
	s, ok := ca.sessions[id]
	return s, ok
}

// Press records a move by mover. It reports true when the mover's flag fell
// before the press landed; the session is then ended and the move does not
// count on the clock.
func (ca *ClockAuthority) Press(s *Session, mover string, isFirst bool) (flagged bool) {
	if s.State == StateEnded {
		return false
	}

	now := ca.clock.Now()
	if s.State == StateTicking && ca.running(s, now) <= 0 {
		ca.recompute(s, now)
		ca.Stop(s)
		ca.broadcast(s)
		return true
	}

	if color, ok := s.ColorOf(mover); ok && color != s.Active() {
		log.Warn().
			Str("session_id", s.ID.String()).
			Str("player", mover).
			Msg("move pressed out of turn")
	}

	s.IsWhiteTurn = !s.IsWhiteTurn
	s.LastMoveStart = now
	s.Moves++

	if isFirst && s.State == StateIdle {
		ca.start(s)
	}

	// baselines come from the last tick, time since that tick is not charged
	s.whiteBaseline = s.WhiteRemaining
	s.blackBaseline = s.BlackRemaining

	// Fischer increment goes to the side that just moved
	if s.IsWhiteTurn {
		s.BlackRemaining += s.Increment
	} else {
		s.WhiteRemaining += s.Increment
	}

	ca.broadcast(s)
	return false
}

// Tick recomputes the running side and broadcasts. It reports true when a
// flag fell; the ticker is stopped after that final broadcast.
func (ca *ClockAuthority) Tick(s *Session) (flagged bool) {
	if s.State != StateTicking {
		return false
	}

	ca.recompute(s, ca.clock.Now())
	ca.broadcast(s)

	if _, fell := s.Flagged(); fell {
		ca.Stop(s)
		return true
	}
	return false
}

// recompute derives the running side from its baseline and the time since
// the last press, so late or missed ticks never accumulate error.
func (ca *ClockAuthority) recompute(s *Session, now time.Time) {
	if s.IsWhiteTurn {
		s.WhiteRemaining = ca.running(s, now)
	} else {
		s.BlackRemaining = ca.running(s, now)
	}
}

// running is the side on move's time at now, without committing it
func (ca *ClockAuthority) running(s *Session, now time.Time) time.Duration {
	elapsed := now.Sub(s.LastMoveStart)
	if s.IsWhiteTurn {
		return s.whiteBaseline - elapsed
	}
	return s.blackBaseline - elapsed
}

// Stop ends the session clock. Safe to call repeatedly.
func (ca *ClockAuthority) Stop(s *Session) {
	if s.ticker != nil {
		s.ticker.stop()
	}
	s.State = StateEnded
}

// Restart replaces s with a fresh idle session for the same pair. Colors
// swap in random mode and stay fixed otherwise. The reset clock is broadcast
// right away.
func (ca *ClockAuthority) Restart(s *Session, initiator string) *Session {
	ca.Stop(s)

	white, black := s.WhiteName, s.BlackName
	if s.Mode == protocol.ModeRandom {
		white, black = black, white
	}

	next := ca.CreateSession(white, black, s.Initial, s.Increment, s.Mode)
	ca.broadcast(next)

	log.Info().
		Str("previous_session_id", s.ID.String()).
		Str("session_id", next.ID.String()).
		Str("restarted_by", initiator).
		Str("white", white).
		Str("black", black).
		Msg("session restarted")
	return next
}

// Remove stops s and drops it from both indexes
func (ca *ClockAuthority) Remove(s *Session) {
	ca.Stop(s)
	delete(ca.sessions, s.ID)
	for _, name := range []string{s.WhiteName, s.BlackName} {
		if ca.byName[name] == s.ID {
			delete(ca.byName, name)
		}
	}
}

// StopAll stops every ticker, used on shutdown
func (ca *ClockAuthority) StopAll() {
	for _, s := range ca.sessions {
		ca.Stop(s)
	}
}

func (ca *ClockAuthority) Len() int { return len(ca.sessions) }

func (ca *ClockAuthority) TickingCount() int {
	n := 0
	for _, s := range ca.sessions {
		if s.State == StateTicking {
			n++
		}
	}
	return n
}

func (ca *ClockAuthority) start(s *Session) {
	h := &tickHandle{done: make(chan struct{})}
	s.ticker = h
	s.State = StateTicking

	t := ca.clock.NewTicker(ca.interval)
	go func(id uuid.UUID) {
		defer t.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-t.Chan():
				select {
				case ca.ticks <- id:
				case <-h.done:
					return
				}
			}
		}
	}(s.ID)

	log.Debug().Str("session_id", s.ID.String()).Msg("clock started")
}

func (ca *ClockAuthority) broadcast(s *Session) {
	frame := protocol.ClockUpdate(s.WhiteRemaining, s.BlackRemaining)
	ca.registry.send(s.WhiteName, frame)
	ca.registry.send(s.BlackName, frame)
}
