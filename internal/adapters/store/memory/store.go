// Package memory is the store gateway without a database: the dev-mode
// backend and the double the app-layer tests run against. It mirrors the
// postgres adapter's semantics, including the expected-status guard on
// reschedule writes.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/polyglotte/relay/internal/core"
	"github.com/polyglotte/relay/internal/domain"
)

type Store struct {
	mu            sync.Mutex
	conversations map[domain.ConversationID]*domain.Conversation
	messages      map[domain.ConversationID][]*domain.Message
	notifications map[domain.NotificationID]*domain.Notification
	notifOrder    []domain.NotificationID
	bookings      map[domain.BookingID]*domain.Booking
}

func New() *Store {
	return &Store{
		conversations: make(map[domain.ConversationID]*domain.Conversation),
		messages:      make(map[domain.ConversationID][]*domain.Message),
		notifications: make(map[domain.NotificationID]*domain.Notification),
		bookings:      make(map[domain.BookingID]*domain.Booking),
	}
}

var (
	_ core.MessageStore      = (*Store)(nil)
	_ core.NotificationStore = (*Store)(nil)
	_ core.BookingStore      = (*Store)(nil)
)

func (s *Store) CreateConversation(_ context.Context, participants []domain.UserID) (*domain.Conversation, error) {
	if len(participants) < 2 {
		return nil, fmt.Errorf("%w: a conversation needs at least two participants", core.ErrProtocol)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := &domain.Conversation{
		ID:           domain.ConversationID(uuid.NewString()),
		Participants: append([]domain.UserID(nil), participants...),
	}
	s.conversations[conv.ID] = conv
	return cloneConversation(conv), nil
}

func (s *Store) GetConversation(_ context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", core.ErrNotFound, id)
	}
	return cloneConversation(conv), nil
}

func (s *Store) ConversationsOf(_ context.Context, user domain.UserID) ([]*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.Conversation{}
	for _, conv := range s.conversations {
		if conv.HasParticipant(user) {
			out = append(out, cloneConversation(conv))
		}
	}
	return out, nil
}

func (s *Store) CreateMessage(_ context.Context, conversation domain.ConversationID, sender domain.UserID, body string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversation]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversation)
	}
	now := time.Now()
	msg := &domain.Message{
		ID:             domain.MessageID(uuid.NewString()),
		ConversationID: conversation,
		Sender:         sender,
		Body:           body,
		CreatedAt:      now,
	}
	s.messages[conversation] = append(s.messages[conversation], msg)
	conv.LastMessageAt = &now
	return msg, nil
}

func (s *Store) MessagesOf(_ context.Context, conversation domain.ConversationID) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Message{}, s.messages[conversation]...), nil
}

func (s *Store) FindUnresolved(_ context.Context, source, target domain.UserID, kind domain.Kind) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.notifOrder {
		n := s.notifications[id]
		if !n.Read && n.Source == source && n.Target == target && n.Kind == kind {
			cp := *n
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateNotification(_ context.Context, source, target domain.UserID, kind domain.Kind) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := &domain.Notification{
		ID:        domain.NotificationID(uuid.NewString()),
		Source:    source,
		Target:    target,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	s.notifications[n.ID] = n
	s.notifOrder = append(s.notifOrder, n.ID)
	cp := *n
	return &cp, nil
}

func (s *Store) MarkRead(_ context.Context, id domain.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return fmt.Errorf("%w: notification %s", core.ErrNotFound, id)
	}
	n.Read = true
	return nil
}

// UnreadFor lists unread notifications addressed to a user (diagnostics
// and tests).
func (s *Store) UnreadFor(user domain.UserID) []*domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := lo.Filter(s.notifOrder, func(id domain.NotificationID, _ int) bool {
		n := s.notifications[id]
		return n.Target == user && !n.Read
	})
	return lo.Map(ids, func(id domain.NotificationID, _ int) *domain.Notification {
		cp := *s.notifications[id]
		return &cp
	})
}

func (s *Store) CreateBooking(_ context.Context, b *domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = domain.BookingID(uuid.NewString())
	}
	s.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (s *Store) GetBooking(_ context.Context, id domain.BookingID) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: booking %s", core.ErrNotFound, id)
	}
	return cloneBooking(b), nil
}

func (s *Store) SaveReschedule(_ context.Context, b *domain.Booking, expect domain.RescheduleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.bookings[b.ID]
	if !ok {
		return fmt.Errorf("%w: booking %s", core.ErrNotFound, b.ID)
	}
	if stored.RescheduleStatus() != expect {
		return fmt.Errorf("%w: booking %s is %s, expected %s",
			core.ErrIllegalTransition, b.ID, stored.RescheduleStatus(), expect)
	}
	s.bookings[b.ID] = cloneBooking(b)
	return nil
}

func cloneConversation(c *domain.Conversation) *domain.Conversation {
	cp := *c
	cp.Participants = append([]domain.UserID(nil), c.Participants...)
	if c.LastMessageAt != nil {
		t := *c.LastMessageAt
		cp.LastMessageAt = &t
	}
	return &cp
}

func cloneBooking(b *domain.Booking) *domain.Booking {
	cp := *b
	if b.Reschedule != nil {
		r := *b.Reschedule
		cp.Reschedule = &r
	}
	return &cp
}
