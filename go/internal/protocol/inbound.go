package protocol

import (
	"encoding/json"
	"fmt"
)

// Message is an inbound client frame. The concrete types are Announce,
// JoinRequest, Move and Notification.
type Message interface{ isMessage() }

// Announce registers a display name and the settings the player offers
type Announce struct {
	Name     string
	Settings Settings
}

func (Announce) isMessage() {}

// JoinRequest asks to be paired with the lobby entry NameToJoin
type JoinRequest struct {
	NameToJoin string `json:"nameToJoin"`
	By         string `json:"by"`
}

func (JoinRequest) isMessage() {}

// Move is an opaque move. Raw holds the complete frame as received so it can
// be relayed to the opponent byte for byte.
type Move struct {
	By      string
	IsFirst bool
	Raw     []byte
}

func (Move) isMessage() {}

// Notification carries a game-control notice such as a resignation or draw offer
type Notification struct {
	Kind      NotificationKind
	By        string
	MoveCount int
}

func (Notification) isMessage() {}

type envelope struct {
	Name         *string         `json:"name"`
	Settings     *Settings       `json:"settings"`
	JoinRequest  *JoinRequest    `json:"joinRequest"`
	Move         json.RawMessage `json:"move"`
	Notification *struct {
		Message   NotificationKind `json:"message"`
		By        string           `json:"by"`
		MoveCount int              `json:"moveCount"`
	} `json:"notification"`
}

type moveHeader struct {
	By      string `json:"by"`
	IsFirst bool   `json:"isFirst"`
}

// Decode maps a text frame onto a Message. Keys are checked in the order
// name, joinRequest, move, notification; the first one present wins.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch {
	case env.Name != nil:
		if *env.Name == "" {
			return nil, fmt.Errorf("%w: empty name", ErrMalformed)
		}
		if env.Settings == nil {
			return nil, fmt.Errorf("%w: announce without settings", ErrMalformed)
		}
		if err := env.Settings.Validate(); err != nil {
			return nil, err
		}
		return Announce{Name: *env.Name, Settings: *env.Settings}, nil

	case env.JoinRequest != nil:
		if env.JoinRequest.NameToJoin == "" {
			return nil, fmt.Errorf("%w: joinRequest without nameToJoin", ErrMalformed)
		}
		return *env.JoinRequest, nil

	case len(env.Move) > 0 && string(env.Move) != "null":
		var hdr moveHeader
		if err := json.Unmarshal(env.Move, &hdr); err != nil {
			return nil, fmt.Errorf("%w: move: %v", ErrMalformed, err)
		}
		raw := make([]byte, len(data))
		copy(raw, data)
		return Move{By: hdr.By, IsFirst: hdr.IsFirst, Raw: raw}, nil

	case env.Notification != nil:
		if !env.Notification.Message.valid() {
			return nil, fmt.Errorf("%w: unknown notification %q", ErrMalformed, env.Notification.Message)
		}
		return Notification{
			Kind:      env.Notification.Message,
			By:        env.Notification.By,
			MoveCount: env.Notification.MoveCount,
		}, nil
	}

	return nil, fmt.Errorf("%w: no known message key", ErrMalformed)
}
