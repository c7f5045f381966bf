package game

import (
	"math/rand/v2"

	"github.com/mcdev12/blitz/go/internal/protocol"
	"github.com/rs/zerolog/log"
)

// MatchTable holds symmetric pairings. Both directions are written and
// removed together.
type MatchTable struct {
	peers map[string]string
}

func NewMatchTable() *MatchTable {
	return &MatchTable{peers: make(map[string]string)}
}

func (m *MatchTable) Pair(a, b string) {
	m.peers[a] = b
	m.peers[b] = a
}

func (m *MatchTable) Peer(name string) (string, bool) {
	peer, ok := m.peers[name]
	return peer, ok
}

func (m *MatchTable) IsMatched(name string) bool {
	_, ok := m.peers[name]
	return ok
}

// Unpair removes the edge for name and its peer
func (m *MatchTable) Unpair(name string) (string, bool) {
	peer, ok := m.peers[name]
	if !ok {
		return "", false
	}
	delete(m.peers, name)
	if m.peers[peer] == name {
		delete(m.peers, peer)
	}
	return peer, true
}

// Pairs returns the number of active matches
func (m *MatchTable) Pairs() int { return len(m.peers) / 2 }

// Matchmaker pairs a requester with a lobby entry and opens their session
type Matchmaker struct {
	registry *Registry
	matches  *MatchTable
	clocks   *ClockAuthority
	coin     func() bool
}

func NewMatchmaker(registry *Registry, matches *MatchTable, clocks *ClockAuthority, coin func() bool) *Matchmaker {
	if coin == nil {
		coin = func() bool { return rand.IntN(2) == 0 }
	}
	return &Matchmaker{registry: registry, matches: matches, clocks: clocks, coin: coin}
}

// RequestJoin pairs requester with target. It returns nil without error when
// the pairing is no longer possible, which happens whenever a lobby view was
// stale.
func (mm *Matchmaker) RequestJoin(target, requester string) *Session {
	logger := log.With().Str("target", target).Str("requester", requester).Logger()

	targetID, online := mm.registry.Get(target)
	switch {
	case !online:
		logger.Debug().Msg("join ignored: target offline")
		return nil
	case target == requester:
		logger.Debug().Msg("join ignored: cannot join self")
		return nil
	case mm.matches.IsMatched(target):
		logger.Debug().Msg("join ignored: target already matched")
		return nil
	case mm.matches.IsMatched(requester):
		logger.Debug().Msg("join ignored: requester already matched")
		return nil
	}

	mm.matches.Pair(target, requester)

	settings := targetID.Settings
	white := pickWhite(target, requester, settings.Color, mm.coin)
	black := requester
	if white == requester {
		black = target
	}

	s := mm.clocks.CreateSession(white, black, settings.Initial(), settings.Increment(), settings.Color)
	mm.sendMatchAttributes(s)

	logger.Info().
		Str("session_id", s.ID.String()).
		Str("white", white).
		Str("black", black).
		Msg("players paired")
	return s
}

func (mm *Matchmaker) sendMatchAttributes(s *Session) {
	for _, c := range []protocol.Color{protocol.White, protocol.Black} {
		mm.registry.send(s.NameOf(c), protocol.MatchAttributesFrame(protocol.MatchAttributes{
			OpponentName:  s.NameOf(c.Other()),
			YourColor:     c,
			TimeMillis:    s.Initial.Milliseconds(),
			GameColorType: s.Mode,
		}))
	}
}

// pickWhite applies the target's color preference. coin decides random games
// and returning true gives white to the target.
func pickWhite(target, requester string, mode protocol.ColorMode, coin func() bool) string {
	switch mode {
	case protocol.ModeWhite:
		return target
	case protocol.ModeBlack:
		return requester
	}
	if coin() {
		return target
	}
	return requester
}
