package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/polyglotte/relay/internal/core"
	"github.com/polyglotte/relay/internal/domain"
)

// Chat is the send-message flow: persist, fan out to the conversation
// room, then notify every absent participant.
type Chat struct {
	store    core.MessageStore
	registry *Registry
	bcast    *Broadcaster
	notifier *Notifier
}

func NewChat(store core.MessageStore, registry *Registry, bcast *Broadcaster, notifier *Notifier) *Chat {
	return &Chat{store: store, registry: registry, bcast: bcast, notifier: notifier}
}

// Send persists and delivers one chat message. The store write happens
// before any broadcast: on store failure the operation fails closed and
// nothing is delivered.
func (c *Chat) Send(ctx context.Context, sender domain.UserID, conversation domain.ConversationID, body string) (*domain.Message, error) {
	conv, err := c.store.GetConversation(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if !conv.HasParticipant(sender) {
		return nil, fmt.Errorf("%w: %s is not a participant of %s", core.ErrProtocol, sender, conversation)
	}

	msg, err := c.store.CreateMessage(ctx, conversation, sender, body)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	room := domain.ConversationRoom(conversation)
	c.bcast.Broadcast(room, newMessageEvent(msg))

	for _, recipient := range conv.Others(sender) {
		if err := c.notifier.Notify(ctx, sender, recipient, domain.KindMessage, room); err != nil {
			// Delivery of the message itself already happened; a failed
			// notification must not fail the send.
			log.Error().Err(err).Str("module", "app.chat").Str("recipient", string(recipient)).Msg("notify recipient")
		}
	}
	return msg, nil
}

// History returns the ordered messages of a conversation.
func (c *Chat) History(ctx context.Context, conversation domain.ConversationID) ([]*domain.Message, error) {
	if _, err := c.store.GetConversation(ctx, conversation); err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	msgs, err := c.store.MessagesOf(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return msgs, nil
}

// RoomsFor computes the initial room-join set for the presence handshake:
// one conversation room per conversation the user participates in.
func (c *Chat) RoomsFor(ctx context.Context, user domain.UserID) ([]domain.RoomID, error) {
	convs, err := c.store.ConversationsOf(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	return lo.Map(convs, func(conv *domain.Conversation, _ int) domain.RoomID {
		return domain.ConversationRoom(conv.ID)
	}), nil
}
