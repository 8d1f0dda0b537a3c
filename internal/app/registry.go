package app

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/polyglotte/relay/internal/core"
	"github.com/polyglotte/relay/internal/domain"
)

type connEntry struct {
	Conn       core.Conn
	User       domain.UserID
	Identified bool
	Rooms      map[domain.RoomID]struct{}
}

// Registry tracks live connections, their owning user and their room
// membership. All mutations and the presence check share one lock so that
// "is the user present in this room" is never observed mid-mutation.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.ConnID]*connEntry
	rooms map[domain.RoomID]map[core.ConnID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[core.ConnID]*connEntry),
		rooms: make(map[domain.RoomID]map[core.ConnID]struct{}),
	}
}

// Register creates an anonymous entry for a freshly connected transport.
// The connection joins no room until it identifies.
func (r *Registry) Register(conn core.Conn) core.ConnID {
	id := core.ConnID(uuid.NewString())
	r.mu.Lock()
	r.conns[id] = &connEntry{Conn: conn, Rooms: make(map[domain.RoomID]struct{})}
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("connection registered")
	return id
}

// Identify binds a user identity to a connection and joins it to the
// user's personal room. Idempotent per connection; rebinding to a
// different identity is a protocol error.
func (r *Registry) Identify(id core.ConnID, user domain.UserID) error {
	if user == "" {
		return fmt.Errorf("%w: empty user identity", core.ErrProtocol)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return fmt.Errorf("%w: unknown connection %s", core.ErrProtocol, id)
	}
	if e.Identified {
		if e.User == user {
			return nil
		}
		return fmt.Errorf("%w: connection already identified as %s", core.ErrProtocol, e.User)
	}
	e.User = user
	e.Identified = true
	r.joinLocked(id, e, domain.PersonalRoom(user))
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("user", string(user)).Msg("connection identified")
	return nil
}

// Join adds the connection to a room. No-op if already a member.
func (r *Registry) Join(id core.ConnID, room domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return fmt.Errorf("%w: unknown connection %s", core.ErrProtocol, id)
	}
	if !e.Identified {
		return fmt.Errorf("%w: join before identify", core.ErrProtocol)
	}
	r.joinLocked(id, e, room)
	return nil
}

func (r *Registry) joinLocked(id core.ConnID, e *connEntry, room domain.RoomID) {
	if _, member := e.Rooms[room]; member {
		return
	}
	e.Rooms[room] = struct{}{}
	set, ok := r.rooms[room]
	if !ok {
		set = make(map[core.ConnID]struct{})
		r.rooms[room] = set
	}
	set[id] = struct{}{}
	log.Debug().Str("module", "app.registry").Str("conn", string(id)).Str("room", string(room)).Msg("joined room")
}

// Leave removes the connection from a room. No-op if not a member.
func (r *Registry) Leave(id core.ConnID, room domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return fmt.Errorf("%w: unknown connection %s", core.ErrProtocol, id)
	}
	r.leaveLocked(id, e, room)
	return nil
}

func (r *Registry) leaveLocked(id core.ConnID, e *connEntry, room domain.RoomID) {
	if _, member := e.Rooms[room]; !member {
		return
	}
	delete(e.Rooms, room)
	if set, ok := r.rooms[room]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.rooms, room)
		}
	}
}

// Unregister removes the connection from every room it was in, including
// its personal room. Membership does not survive disconnect.
func (r *Registry) Unregister(id core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return
	}
	for room := range e.Rooms {
		if set, ok := r.rooms[room]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(r.rooms, room)
			}
		}
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("connection unregistered")
}

// UserOf returns the identity bound to a connection, if identified.
func (r *Registry) UserOf(id core.ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || !e.Identified {
		return "", false
	}
	return e.User, true
}

// MembersOf returns a snapshot of the room's membership.
func (r *Registry) MembersOf(room domain.RoomID) []core.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.rooms[room])
}

type memberSnap struct {
	ID   core.ConnID
	Conn core.Conn
}

// connsOf pairs member IDs with their transports for the broadcaster.
func (r *Registry) connsOf(room domain.RoomID) []memberSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]memberSnap, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		if e, ok := r.conns[id]; ok {
			out = append(out, memberSnap{ID: id, Conn: e.Conn})
		}
	}
	return out
}

// IsUserPresentInRoom reports whether at least one of the user's
// connections is currently a member of the room. This is the signal the
// notifier uses to suppress notifications the recipient would not need.
func (r *Registry) IsUserPresentInRoom(user domain.UserID, room domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := range r.rooms[room] {
		if e, ok := r.conns[id]; ok && e.Identified && e.User == user {
			return true
		}
	}
	return false
}

type RoomInfo struct {
	Room    domain.RoomID `json:"room"`
	Members int           `json:"members"`
}

// Snapshot lists every live room with its member count (diagnostics).
func (r *Registry) Snapshot() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.MapToSlice(r.rooms, func(room domain.RoomID, set map[core.ConnID]struct{}) RoomInfo {
		return RoomInfo{Room: room, Members: len(set)}
	})
}
