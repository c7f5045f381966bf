package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/blitz/go/internal/protocol"
)

// Outbox is the send half of a player connection. Send must not block; it
// reports false when the frame could not be queued.
type Outbox interface {
	ID() string
	Send(frame []byte) bool
}

// Identity is a connected, named player. Outbox is always set; the identity
// is removed when its connection goes away.
type Identity struct {
	Name     string
	Settings protocol.Settings
	Outbox   Outbox

	seq uint64 // announcement order
}

// SessionState is the clock state of a session
type SessionState int

const (
	StateIdle SessionState = iota
	StateTicking
	StateEnded
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTicking:
		return "ticking"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// Session is the authoritative clock and turn state of one match. A session
// is reachable from both player names but exists exactly once.
type Session struct {
	ID        uuid.UUID
	WhiteName string
	BlackName string
	Mode      protocol.ColorMode
	Initial   time.Duration
	Increment time.Duration

	WhiteRemaining time.Duration
	BlackRemaining time.Duration
	IsWhiteTurn    bool
	LastMoveStart  time.Time
	State          SessionState
	Moves          int

	// remaining times as of the last press; ticks subtract from these
	whiteBaseline time.Duration
	blackBaseline time.Duration
	ticker        *tickHandle
}

// ColorOf returns the side name plays in this session
func (s *Session) ColorOf(name string) (protocol.Color, bool) {
	switch name {
	case s.WhiteName:
		return protocol.White, true
	case s.BlackName:
		return protocol.Black, true
	}
	return "", false
}

// NameOf returns the player holding color
func (s *Session) NameOf(c protocol.Color) string {
	if c == protocol.White {
		return s.WhiteName
	}
	return s.BlackName
}

// Remaining returns the remaining time of color
func (s *Session) Remaining(c protocol.Color) time.Duration {
	if c == protocol.White {
		return s.WhiteRemaining
	}
	return s.BlackRemaining
}

// Active is the side whose clock runs
func (s *Session) Active() protocol.Color {
	if s.IsWhiteTurn {
		return protocol.White
	}
	return protocol.Black
}

// Flagged returns the side whose time is up, if any
func (s *Session) Flagged() (protocol.Color, bool) {
	switch {
	case s.WhiteRemaining <= 0:
		return protocol.White, true
	case s.BlackRemaining <= 0:
		return protocol.Black, true
	}
	return "", false
}

// Stats is a snapshot of the coordinator tables
type Stats struct {
	Identities int `json:"identities"`
	Available  int `json:"available"`
	Matches    int `json:"matches"`
	Sessions   int `json:"sessions"`
	Ticking    int `json:"ticking"`
}
