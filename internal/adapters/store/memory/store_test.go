package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polyglotte/relay/internal/core"
	"github.com/polyglotte/relay/internal/domain"
)

func TestStore_Conversations(t *testing.T) {
	req := require.New(t)
	s := New()
	ctx := context.Background()

	_, err := s.CreateConversation(ctx, []domain.UserID{"alice"})
	req.ErrorIs(err, core.ErrProtocol)

	conv, err := s.CreateConversation(ctx, []domain.UserID{"alice", "bob"})
	req.NoError(err)
	req.Nil(conv.LastMessageAt)

	got, err := s.GetConversation(ctx, conv.ID)
	req.NoError(err)
	req.Equal(conv.Participants, got.Participants)

	_, err = s.GetConversation(ctx, "missing")
	req.ErrorIs(err, core.ErrNotFound)
}

func TestStore_CreateMessage_TouchesLastMessageAt(t *testing.T) {
	req := require.New(t)
	s := New()
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, []domain.UserID{"alice", "bob"})
	req.NoError(err)

	msg, err := s.CreateMessage(ctx, conv.ID, "alice", "hi")
	req.NoError(err)
	req.NotEmpty(msg.ID)

	got, err := s.GetConversation(ctx, conv.ID)
	req.NoError(err)
	req.NotNil(got.LastMessageAt)
	req.Equal(msg.CreatedAt, *got.LastMessageAt)

	_, err = s.CreateMessage(ctx, "missing", "alice", "hi")
	req.ErrorIs(err, core.ErrNotFound)
}

func TestStore_ConversationsOf(t *testing.T) {
	req := require.New(t)
	s := New()
	ctx := context.Background()

	c1, err := s.CreateConversation(ctx, []domain.UserID{"alice", "bob"})
	req.NoError(err)
	_, err = s.CreateConversation(ctx, []domain.UserID{"bob", "carol"})
	req.NoError(err)

	convs, err := s.ConversationsOf(ctx, "alice")
	req.NoError(err)
	req.Len(convs, 1)
	req.Equal(c1.ID, convs[0].ID)
}

func TestStore_FindUnresolved(t *testing.T) {
	req := require.New(t)
	s := New()
	ctx := context.Background()

	// Absence is not an error.
	n, err := s.FindUnresolved(ctx, "alice", "bob", domain.KindMessage)
	req.NoError(err)
	req.Nil(n)

	created, err := s.CreateNotification(ctx, "alice", "bob", domain.KindMessage)
	req.NoError(err)

	n, err = s.FindUnresolved(ctx, "alice", "bob", domain.KindMessage)
	req.NoError(err)
	req.NotNil(n)
	req.Equal(created.ID, n.ID)

	// The lookup is exact on the (source, target, kind) triple.
	n, err = s.FindUnresolved(ctx, "bob", "alice", domain.KindMessage)
	req.NoError(err)
	req.Nil(n)

	req.NoError(s.MarkRead(ctx, created.ID))
	n, err = s.FindUnresolved(ctx, "alice", "bob", domain.KindMessage)
	req.NoError(err)
	req.Nil(n)
}

func TestStore_MarkRead_UnknownNotification(t *testing.T) {
	req := require.New(t)
	s := New()

	err := s.MarkRead(context.Background(), "missing")
	req.ErrorIs(err, core.ErrNotFound)
}

func TestStore_SaveReschedule_GuardsExpectedStatus(t *testing.T) {
	req := require.New(t)
	s := New()
	ctx := context.Background()

	b := &domain.Booking{Teacher: "t", Student: "st", Date: "2025-01-03", Timeslot: "10:00"}
	req.NoError(s.CreateBooking(ctx, b))

	b.Reschedule = &domain.Reschedule{
		NewDate:     "2025-01-10",
		NewTimeslot: "14:00",
		Status:      domain.ReschedulePending,
		Initiator:   "st",
	}
	req.NoError(s.SaveReschedule(ctx, b, domain.RescheduleNone))

	// A writer that still believes the record is at none loses.
	stale := &domain.Booking{ID: b.ID, Teacher: "t", Student: "st"}
	err := s.SaveReschedule(ctx, stale, domain.RescheduleNone)
	req.ErrorIs(err, core.ErrIllegalTransition)

	err = s.SaveReschedule(ctx, b, domain.ReschedulePending)
	req.NoError(err)

	err = s.SaveReschedule(ctx, &domain.Booking{ID: "missing"}, domain.RescheduleNone)
	req.ErrorIs(err, core.ErrNotFound)
}

func TestStore_ReturnsCopies(t *testing.T) {
	req := require.New(t)
	s := New()
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, []domain.UserID{"alice", "bob"})
	req.NoError(err)
	conv.Participants[0] = "mallory"

	got, err := s.GetConversation(ctx, conv.ID)
	req.NoError(err)
	req.Equal(domain.UserID("alice"), got.Participants[0])
}
