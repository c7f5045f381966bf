package events

import "time"

// End reasons carried by GameEnded
const (
	ReasonResign    = "resign"
	ReasonDraw      = "draw"
	ReasonTimeout   = "timeout"
	ReasonAbandoned = "abandoned"
	ReasonEnded     = "ended"
)

// GameStartedPayload is the payload for a GameStarted event
type GameStartedPayload struct {
	White           string    `json:"white"`
	Black           string    `json:"black"`
	InitialMillis   int64     `json:"initial_ms"`
	IncrementMillis int64     `json:"increment_ms"`
	ColorMode       string    `json:"color_mode"`
	StartedAt       time.Time `json:"started_at"`
}

// GameEndedPayload is the payload for a GameEnded event. Winner is empty for
// draws and for games ended without a declared result.
type GameEndedPayload struct {
	White                string    `json:"white"`
	Black                string    `json:"black"`
	Reason               string    `json:"reason"`
	Winner               string    `json:"winner,omitempty"`
	WhiteRemainingMillis int64     `json:"white_remaining_ms"`
	BlackRemainingMillis int64     `json:"black_remaining_ms"`
	EndedAt              time.Time `json:"ended_at"`
}

// GameRestartedPayload is the payload for a GameRestarted event
type GameRestartedPayload struct {
	PreviousSessionID string    `json:"previous_session_id"`
	White             string    `json:"white"`
	Black             string    `json:"black"`
	RestartedBy       string    `json:"restarted_by"`
	RestartedAt       time.Time `json:"restarted_at"`
}
