package core

import (
	"context"

	"github.com/polyglotte/relay/internal/domain"
)

// MessageStore is the durable side of conversations. The realtime layer
// consumes it but does not own the schema; conversations themselves are
// created by the surrounding CRUD surface (and by tests).
type MessageStore interface {
	CreateConversation(ctx context.Context, participants []domain.UserID) (*domain.Conversation, error)
	GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error)
	ConversationsOf(ctx context.Context, user domain.UserID) ([]*domain.Conversation, error)

	// CreateMessage persists the message, stamps its creation time and
	// bumps the conversation's last-message timestamp.
	CreateMessage(ctx context.Context, conversation domain.ConversationID, sender domain.UserID, body string) (*domain.Message, error)
	MessagesOf(ctx context.Context, conversation domain.ConversationID) ([]*domain.Message, error)
}

// NotificationStore owns notification rows and the unread de-duplication
// key (source, target, kind).
type NotificationStore interface {
	// FindUnresolved returns the unread notification for the triple, or
	// (nil, nil) when none is outstanding.
	FindUnresolved(ctx context.Context, source, target domain.UserID, kind domain.Kind) (*domain.Notification, error)
	CreateNotification(ctx context.Context, source, target domain.UserID, kind domain.Kind) (*domain.Notification, error)
	MarkRead(ctx context.Context, id domain.NotificationID) error
}

// BookingStore owns lesson bookings and their reschedule sub-record.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *domain.Booking) error
	GetBooking(ctx context.Context, id domain.BookingID) (*domain.Booking, error)

	// SaveReschedule persists the booking's date, timeslot and reschedule
	// sub-record, guarded by the reschedule status the caller observed.
	// When the stored status no longer matches expect, nothing is written
	// and ErrIllegalTransition is returned: concurrent transitions on one
	// booking serialize here, exactly one wins.
	SaveReschedule(ctx context.Context, b *domain.Booking, expect domain.RescheduleStatus) error
}
