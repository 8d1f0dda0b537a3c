package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/polyglotte/relay/internal/domain"
)

// Broadcaster fans an event out to every connection currently joined to a
// room. Delivery is at-most-once against the membership snapshot taken at
// call time; connections joining afterwards receive nothing. A full
// outbound queue drops the frame for that member only and is logged, never
// surfaced to the caller.
//
// Ordering: frames broadcast by one operation are delivered to each member
// in call order, because the caller runs the broadcasts sequentially and
// each member's queue is FIFO.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

func (b *Broadcaster) Broadcast(room domain.RoomID, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcaster").Str("room", string(room)).Msg("marshal event")
		return
	}
	sent, dropped := 0, 0
	for _, m := range b.registry.connsOf(room) {
		if err := m.Conn.TrySend(data); err != nil {
			dropped++
			log.Warn().Str("module", "app.broadcaster").Str("room", string(room)).Str("conn", string(m.ID)).Err(err).Msg("member dropped frame")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.broadcaster").Str("room", string(room)).Int("sent_to", sent).Int("dropped", dropped).Msg("broadcast result")
}

// ToUser delivers to every connection of one user via its personal room.
func (b *Broadcaster) ToUser(user domain.UserID, v any) {
	b.Broadcast(domain.PersonalRoom(user), v)
}
