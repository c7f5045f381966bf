package game

import (
	"errors"
	"sort"

	"github.com/mcdev12/blitz/go/internal/protocol"
)

var (
	ErrDuplicateName     = errors.New("name already active")
	ErrAlreadyAnnounced  = errors.New("connection already announced a name")
	ErrConnectionUnknown = errors.New("connection has not announced a name")
)

// Registry tracks connected identities by name and by connection
type Registry struct {
	identities map[string]*Identity
	byConn     map[string]string
	seq        uint64
}

func NewRegistry() *Registry {
	return &Registry{
		identities: make(map[string]*Identity),
		byConn:     make(map[string]string),
	}
}

// Announce binds name to out. An active name is never rebound.
func (r *Registry) Announce(name string, settings protocol.Settings, out Outbox) (*Identity, error) {
	if _, taken := r.identities[name]; taken {
		return nil, ErrDuplicateName
	}
	if _, named := r.byConn[out.ID()]; named {
		return nil, ErrAlreadyAnnounced
	}

	r.seq++
	id := &Identity{Name: name, Settings: settings, Outbox: out, seq: r.seq}
	r.identities[name] = id
	r.byConn[out.ID()] = name
	return id, nil
}

// Remove drops the identity and returns it, or nil when name is unknown
func (r *Registry) Remove(name string) *Identity {
	id, ok := r.identities[name]
	if !ok {
		return nil
	}
	delete(r.identities, name)
	delete(r.byConn, id.Outbox.ID())
	return id
}

func (r *Registry) Get(name string) (*Identity, bool) {
	id, ok := r.identities[name]
	return id, ok
}

// Lookup returns the live outbox bound to name
func (r *Registry) Lookup(name string) (Outbox, bool) {
	id, ok := r.identities[name]
	if !ok {
		return nil, false
	}
	return id.Outbox, true
}

// NameOf resolves a connection to the name it announced
func (r *Registry) NameOf(connID string) (string, bool) {
	name, ok := r.byConn[connID]
	return name, ok
}

// All returns every identity in announcement order
func (r *Registry) All() []*Identity {
	out := make([]*Identity, 0, len(r.identities))
	for _, id := range r.identities {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (r *Registry) Len() int { return len(r.identities) }

// send delivers frame to name if it is connected
func (r *Registry) send(name string, frame []byte) bool {
	out, ok := r.Lookup(name)
	if !ok {
		return false
	}
	return out.Send(frame)
}
