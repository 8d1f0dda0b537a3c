package app

import "github.com/polyglotte/relay/internal/domain"

// Server → client event frames. The Type discriminator matches what the
// web client switches on.

type NewMessageEvent struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

func newMessageEvent(m *domain.Message) NewMessageEvent {
	return NewMessageEvent{Type: "new-message", Message: m}
}

type NewNotificationEvent struct {
	Type         string               `json:"type"`
	Notification *domain.Notification `json:"notification"`
	// TimeDiff is the human-readable age of the notification, rendered at
	// dispatch time and never stored.
	TimeDiff string `json:"time_diff"`
}

func newNotificationEvent(n *domain.Notification, timeDiff string) NewNotificationEvent {
	return NewNotificationEvent{Type: "new-notification", Notification: n, TimeDiff: timeDiff}
}

type BookingUpdatedEvent struct {
	Type    string          `json:"type"`
	Booking *domain.Booking `json:"booking"`
}

func bookingUpdatedEvent(b *domain.Booking) BookingUpdatedEvent {
	return BookingUpdatedEvent{Type: "booking-updated", Booking: b}
}
