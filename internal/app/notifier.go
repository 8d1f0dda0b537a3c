package app

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/polyglotte/relay/internal/core"
	"github.com/polyglotte/relay/internal/domain"
)

// kindPolicy drives the dispatch differences between notification kinds.
// Kinds without a row get the zero policy.
type kindPolicy struct {
	// SuppressWhenViewing skips the notification entirely when the target
	// already has a connection joined to the source conversation room.
	SuppressWhenViewing bool
	// Dedupe suppresses creation while an unread notification for the same
	// (source, target, kind) triple is outstanding.
	Dedupe bool
}

// Chat messages are a recurring stream, so they are both presence-checked
// and de-duplicated. Every other declared kind is a discrete one-time event
// and falls through to the zero policy: created unconditionally. The closed
// set itself lives in domain.Kind.Valid, the one place kinds are declared.
var kindPolicies = map[domain.Kind]kindPolicy{
	domain.KindMessage: {SuppressWhenViewing: true, Dedupe: true},
}

// Notifier decides whether a notification is created and pushes created
// ones to the target's personal room.
type Notifier struct {
	store    core.NotificationStore
	registry *Registry
	bcast    *Broadcaster
	locks    *keyedMutex
}

func NewNotifier(store core.NotificationStore, registry *Registry, bcast *Broadcaster) *Notifier {
	return &Notifier{store: store, registry: registry, bcast: bcast, locks: newKeyedMutex()}
}

// Notify runs the dispatch sequence for one (source, target, kind) event.
// conversationRoom is only consulted for presence-suppressed kinds and may
// be empty otherwise. Suppression is not an error.
func (n *Notifier) Notify(ctx context.Context, source, target domain.UserID, kind domain.Kind, conversationRoom domain.RoomID) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown notification kind %q", core.ErrProtocol, kind)
	}
	policy := kindPolicies[kind]

	if policy.SuppressWhenViewing && n.registry.IsUserPresentInRoom(target, conversationRoom) {
		log.Debug().Str("module", "app.notifier").Str("target", string(target)).Str("room", string(conversationRoom)).Msg("target is viewing the conversation, suppressed")
		return nil
	}

	if policy.Dedupe {
		// The check-then-create below must be atomic per triple, or two
		// concurrent messages both observe "no unread" and both create one.
		unlock := n.locks.Lock(dedupeKey(source, target, kind))
		defer unlock()

		existing, err := n.store.FindUnresolved(ctx, source, target, kind)
		if err != nil {
			return fmt.Errorf("find unresolved notification: %w", err)
		}
		if existing != nil {
			log.Debug().Str("module", "app.notifier").Str("source", string(source)).Str("target", string(target)).Str("kind", string(kind)).Msg("unread notification outstanding, suppressed")
			return nil
		}
	}

	notif, err := n.store.CreateNotification(ctx, source, target, kind)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	n.bcast.ToUser(target, newNotificationEvent(notif, humanize.Time(notif.CreatedAt)))
	log.Info().Str("module", "app.notifier").Str("source", string(source)).Str("target", string(target)).Str("kind", string(kind)).Msg("notification dispatched")
	return nil
}

// Resolve marks a notification read, re-arming de-duplication for its triple.
func (n *Notifier) Resolve(ctx context.Context, id domain.NotificationID) error {
	if err := n.store.MarkRead(ctx, id); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func dedupeKey(source, target domain.UserID, kind domain.Kind) string {
	return string(source) + "|" + string(target) + "|" + string(kind)
}
