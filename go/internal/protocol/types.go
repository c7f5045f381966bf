package protocol

import (
	"errors"
	"fmt"
	"time"
)

// Wire types shared between the game core and the gateway

// ErrMalformed is returned for frames that cannot be mapped onto a known message
var ErrMalformed = errors.New("malformed message")

// Color is a side of the board
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Other returns the opposite side
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// ColorMode is the color preference a player advertises in the lobby.
// It decides who plays white when somebody joins them.
type ColorMode string

const (
	ModeWhite  ColorMode = "white"
	ModeBlack  ColorMode = "black"
	ModeRandom ColorMode = "random"
)

func (m ColorMode) valid() bool {
	switch m {
	case ModeWhite, ModeBlack, ModeRandom:
		return true
	}
	return false
}

// Settings are the match settings a player advertises. Times are in milliseconds.
type Settings struct {
	TimeMillis      int64     `json:"time"`
	IncrementMillis int64     `json:"increment"`
	Color           ColorMode `json:"color"`
}

// Upper bounds keep the clock arithmetic far away from time.Duration overflow
const (
	MaxTimeMillis      = int64(24 * time.Hour / time.Millisecond)
	MaxIncrementMillis = int64(time.Hour / time.Millisecond)
)

// Initial returns the starting clock duration
func (s Settings) Initial() time.Duration {
	return time.Duration(s.TimeMillis) * time.Millisecond
}

// Increment returns the per-move Fischer increment
func (s Settings) Increment() time.Duration {
	return time.Duration(s.IncrementMillis) * time.Millisecond
}

// Validate rejects settings no clock can run with
func (s Settings) Validate() error {
	if s.TimeMillis <= 0 {
		return fmt.Errorf("%w: time must be positive, got %d", ErrMalformed, s.TimeMillis)
	}
	if s.TimeMillis > MaxTimeMillis {
		return fmt.Errorf("%w: time exceeds %d, got %d", ErrMalformed, MaxTimeMillis, s.TimeMillis)
	}
	if s.IncrementMillis < 0 {
		return fmt.Errorf("%w: increment must not be negative, got %d", ErrMalformed, s.IncrementMillis)
	}
	if s.IncrementMillis > MaxIncrementMillis {
		return fmt.Errorf("%w: increment exceeds %d, got %d", ErrMalformed, MaxIncrementMillis, s.IncrementMillis)
	}
	if !s.Color.valid() {
		return fmt.Errorf("%w: unknown color %q", ErrMalformed, s.Color)
	}
	return nil
}

// NotificationKind enumerates the game-control notifications players exchange
type NotificationKind string

const (
	NotifyResign       NotificationKind = "resign"
	NotifyGameEnded    NotificationKind = "game ended"
	NotifyDrawOffer    NotificationKind = "draw offer"
	NotifyDrawAccepted NotificationKind = "draw accepted"
	NotifyDrawDeclined NotificationKind = "draw declined"
)

func (k NotificationKind) valid() bool {
	switch k {
	case NotifyResign, NotifyGameEnded, NotifyDrawOffer, NotifyDrawAccepted, NotifyDrawDeclined:
		return true
	}
	return false
}

// Server-originated notices
const (
	NoticeDuplicate            = "duplicate"
	NoticeOpponentDisconnected = "opponent disconnected"
)
