package game

import (
	"github.com/mcdev12/blitz/go/internal/events"
	"github.com/mcdev12/blitz/go/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Relay routes in-session traffic between the two peers of a match and
// applies the clock side effects of each message.
type Relay struct {
	registry *Registry
	matches  *MatchTable
	clocks   *ClockAuthority
	lobby    *Lobby
	events   events.Sink
}

func NewRelay(registry *Registry, matches *MatchTable, clocks *ClockAuthority, lobby *Lobby, sink events.Sink) *Relay {
	if sink == nil {
		sink = events.Discard
	}
	return &Relay{registry: registry, matches: matches, clocks: clocks, lobby: lobby, events: sink}
}

// Move presses the sender's clock and forwards the raw frame to the opponent
func (r *Relay) Move(sender string, mv protocol.Move) {
	if s, ok := r.clocks.SessionOf(sender); ok {
		if flagged := r.clocks.Press(s, sender, mv.IsFirst); flagged {
			r.FlagFall(s)
		}
	}

	peer, ok := r.matches.Peer(sender)
	if !ok {
		log.Debug().Str("player", sender).Msg("move dropped: no opponent")
		return
	}
	if !r.registry.send(peer, mv.Raw) {
		log.Debug().Str("player", sender).Str("opponent", peer).Msg("move dropped: opponent not reachable")
	}
}

// Notify handles a game-control notification from sender
func (r *Relay) Notify(sender string, n protocol.Notification) {
	switch n.Kind {
	case protocol.NotifyResign:
		if s, ok := r.clocks.SessionOf(sender); ok {
			r.endGame(s, events.ReasonResign, s.opponentOf(sender))
			next := r.clocks.Restart(s, sender)
			r.emit(events.EventTypeGameRestarted, next, events.GameRestartedPayload{
				PreviousSessionID: s.ID.String(),
				White:             next.WhiteName,
				Black:             next.BlackName,
				RestartedBy:       sender,
				RestartedAt:       r.clocks.clock.Now(),
			})
		}
		r.notifyPeer(sender, string(protocol.NotifyResign))

	case protocol.NotifyGameEnded:
		if s, ok := r.clocks.SessionOf(sender); ok {
			r.endGame(s, events.ReasonEnded, "")
		}

	case protocol.NotifyDrawOffer:
		r.notifyPeer(sender, protocol.DrawOfferNotice{DrawOfferOnMove: n.MoveCount})

	case protocol.NotifyDrawAccepted:
		r.notifyPeer(sender, string(protocol.NotifyDrawAccepted))
		if s, ok := r.clocks.SessionOf(sender); ok {
			r.endGame(s, events.ReasonDraw, "")
		}

	case protocol.NotifyDrawDeclined:
		r.notifyPeer(sender, string(protocol.NotifyDrawDeclined))
	}
}

// Disconnect tears down everything owned by name. The lobby is rebroadcast
// only when name had no live opponent; a live opponent gets a notice instead.
func (r *Relay) Disconnect(name string) {
	peer, matched := r.matches.Peer(name)
	_, peerLive := r.registry.Lookup(peer)
	peerLive = matched && peerLive

	if s, ok := r.clocks.SessionOf(name); ok {
		r.endGame(s, events.ReasonAbandoned, s.opponentOf(name))
		r.clocks.Remove(s)
	}
	if peerLive {
		r.registry.send(peer, protocol.Notice(protocol.NoticeOpponentDisconnected))
	}
	r.matches.Unpair(name)
	r.registry.Remove(name)

	log.Info().
		Str("player", name).
		Str("opponent", peer).
		Bool("opponent_notified", peerLive).
		Msg("player disconnected")

	if !peerLive {
		r.lobby.Broadcast()
	}
}

// FlagFall reports a time forfeit to both players. The pair stays matched
// so they can start a rematch.
func (r *Relay) FlagFall(s *Session) {
	loser, ok := s.Flagged()
	if !ok {
		return
	}
	winner := s.NameOf(loser.Other())

	frame := protocol.Notice(protocol.FlagFallNotice{FlagFall: loser, Winner: winner})
	r.registry.send(s.WhiteName, frame)
	r.registry.send(s.BlackName, frame)

	log.Info().
		Str("session_id", s.ID.String()).
		Str("flagged", string(loser)).
		Str("winner", winner).
		Msg("flag fell")

	r.emitEnded(s, events.ReasonTimeout, winner)
}

// endGame stops the clock and reports the result once per session
func (r *Relay) endGame(s *Session, reason, winner string) {
	if s.State == StateEnded {
		return
	}
	r.clocks.Stop(s)
	r.emitEnded(s, reason, winner)
}

func (r *Relay) notifyPeer(sender string, body any) {
	peer, ok := r.matches.Peer(sender)
	if !ok {
		log.Debug().Str("player", sender).Msg("notification dropped: no opponent")
		return
	}
	r.registry.send(peer, protocol.Notice(body))
}

func (r *Relay) emitEnded(s *Session, reason, winner string) {
	r.emit(events.EventTypeGameEnded, s, events.GameEndedPayload{
		White:                s.WhiteName,
		Black:                s.BlackName,
		Reason:               reason,
		Winner:               winner,
		WhiteRemainingMillis: s.WhiteRemaining.Milliseconds(),
		BlackRemainingMillis: s.BlackRemaining.Milliseconds(),
		EndedAt:              r.clocks.clock.Now(),
	})
}

func (r *Relay) emit(t events.EventType, s *Session, payload any) {
	ev, err := events.NewEvent(t, s.ID, payload, r.clocks.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("session_id", s.ID.String()).Msg("failed to build event")
		return
	}
	r.events.Enqueue(ev)
}

func (s *Session) opponentOf(name string) string {
	if name == s.WhiteName {
		return s.BlackName
	}
	return s.WhiteName
}
