package game

import "github.com/mcdev12/blitz/go/internal/protocol"

// Lobby derives the list of available opponents from the registry and the
// match table. It keeps no state of its own.
type Lobby struct {
	registry *Registry
	matches  *MatchTable
}

func NewLobby(registry *Registry, matches *MatchTable) *Lobby {
	return &Lobby{registry: registry, matches: matches}
}

// Available lists every connected identity without a match
func (l *Lobby) Available() []protocol.Opponent {
	var out []protocol.Opponent
	for _, id := range l.registry.All() {
		if l.matches.IsMatched(id.Name) {
			continue
		}
		out = append(out, protocol.Opponent{Name: id.Name, Settings: id.Settings})
	}
	return out
}

// Broadcast sends the current list to every registered identity, matched
// players included, and returns the number of frames queued.
func (l *Lobby) Broadcast() int {
	frame := protocol.AvailableOpponents(l.Available())

	sent := 0
	for _, id := range l.registry.All() {
		if id.Outbox.Send(frame) {
			sent++
		}
	}
	return sent
}
