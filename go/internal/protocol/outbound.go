package protocol

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// Opponent is one lobby entry
type Opponent struct {
	Name     string   `json:"name"`
	Settings Settings `json:"settings"`
}

// MatchAttributes tells a freshly paired player who they play and with which color
type MatchAttributes struct {
	OpponentName  string    `json:"opponentName"`
	YourColor     Color     `json:"yourColor"`
	TimeMillis    int64     `json:"time"`
	GameColorType ColorMode `json:"gameColorType"`
}

// ClockState is the pair of remaining times in milliseconds
type ClockState struct {
	White int64 `json:"white"`
	Black int64 `json:"black"`
}

// FlagFallNotice announces that a side ran out of time
type FlagFallNotice struct {
	FlagFall Color  `json:"flagFall"`
	Winner   string `json:"winner"`
}

// DrawOfferNotice is relayed to the opponent of the player offering a draw
type DrawOfferNotice struct {
	DrawOfferOnMove int `json:"drawOfferOnMove"`
}

// AvailableOpponents encodes the lobby broadcast
func AvailableOpponents(opponents []Opponent) []byte {
	if opponents == nil {
		opponents = []Opponent{}
	}
	return encode(struct {
		AvailableOpponents []Opponent `json:"availableOpponents"`
	}{opponents})
}

// MatchAttributesFrame encodes the pairing notice for one side
func MatchAttributesFrame(a MatchAttributes) []byte {
	return encode(struct {
		MatchAttributes MatchAttributes `json:"matchAttributes"`
	}{a})
}

// ClockUpdate encodes the remaining times, truncated to whole milliseconds
func ClockUpdate(white, black time.Duration) []byte {
	return encode(struct {
		ClockUpdate ClockState `json:"clockUpdate"`
	}{ClockState{White: white.Milliseconds(), Black: black.Milliseconds()}})
}

// Notice encodes a notification whose body is either a string or an object
func Notice(body any) []byte {
	return encode(struct {
		Notification any `json:"notification"`
	}{body})
}

func encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode outbound frame")
		return nil
	}
	return data
}
