package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/polyglotte/relay/internal/core"
	"github.com/polyglotte/relay/internal/domain"
)

// Rescheduler drives the negotiation over a booking's date and timeslot:
//
//	none → pending → accepted | declined | withdrawn
//
// Transitions for one booking are serialized twice over: a per-booking
// mutex inside this process, and an expected-status guard at the store, so
// racing accept/decline calls resolve to exactly one winner.
type Rescheduler struct {
	bookings core.BookingStore
	notifier *Notifier
	bcast    *Broadcaster
	locks    *keyedMutex
}

func NewRescheduler(bookings core.BookingStore, notifier *Notifier, bcast *Broadcaster) *Rescheduler {
	return &Rescheduler{bookings: bookings, notifier: notifier, bcast: bcast, locks: newKeyedMutex()}
}

// Propose attaches a pending proposal. Legal only while no proposal is
// pending; a terminal sub-record from an earlier negotiation is replaced.
func (s *Rescheduler) Propose(ctx context.Context, id domain.BookingID, initiator domain.UserID, newDate, newTimeslot string) (*domain.Booking, error) {
	unlock := s.locks.Lock("booking:" + string(id))
	defer unlock()

	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	role, err := b.RoleOf(initiator)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrIllegalTransition, err)
	}
	prev := b.RescheduleStatus()
	if !prev.Terminal() {
		return nil, fmt.Errorf("%w: a proposal is already pending on booking %s", core.ErrIllegalTransition, id)
	}

	b.Reschedule = &domain.Reschedule{
		NewDate:     newDate,
		NewTimeslot: newTimeslot,
		Status:      domain.ReschedulePending,
		Initiator:   initiator,
	}
	if err := s.bookings.SaveReschedule(ctx, b, prev); err != nil {
		return nil, fmt.Errorf("save proposal: %w", err)
	}

	counterpart, _ := b.Counterpart(initiator)
	s.dispatch(ctx, initiator, counterpart, domain.RescheduleKind(role, domain.PhasePending))
	s.announce(b)
	log.Info().Str("module", "app.reschedule").Str("booking", string(id)).Str("initiator", string(initiator)).Msg("reschedule proposed")
	return b, nil
}

// Accept applies the proposed date and timeslot. Only the counterpart of
// the initiator may accept, and only while pending.
func (s *Rescheduler) Accept(ctx context.Context, id domain.BookingID, actor domain.UserID) (*domain.Booking, error) {
	return s.resolve(ctx, id, actor, domain.RescheduleAccepted)
}

// Decline rejects the proposal; the booking keeps its current schedule.
func (s *Rescheduler) Decline(ctx context.Context, id domain.BookingID, actor domain.UserID) (*domain.Booking, error) {
	return s.resolve(ctx, id, actor, domain.RescheduleDeclined)
}

func (s *Rescheduler) resolve(ctx context.Context, id domain.BookingID, actor domain.UserID, outcome domain.RescheduleStatus) (*domain.Booking, error) {
	unlock := s.locks.Lock("booking:" + string(id))
	defer unlock()

	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	role, err := b.RoleOf(actor)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrIllegalTransition, err)
	}
	if b.RescheduleStatus() != domain.ReschedulePending {
		return nil, fmt.Errorf("%w: booking %s has no pending proposal", core.ErrIllegalTransition, id)
	}
	if b.Reschedule.Initiator == actor {
		return nil, fmt.Errorf("%w: a party cannot resolve its own proposal", core.ErrIllegalTransition)
	}

	phase := domain.PhaseDecline
	if outcome == domain.RescheduleAccepted {
		phase = domain.PhaseAccept
		b.Date = b.Reschedule.NewDate
		b.Timeslot = b.Reschedule.NewTimeslot
	}
	b.Reschedule.Status = outcome
	if err := s.bookings.SaveReschedule(ctx, b, domain.ReschedulePending); err != nil {
		return nil, fmt.Errorf("save resolution: %w", err)
	}

	initiator := b.Reschedule.Initiator
	s.dispatch(ctx, actor, initiator, domain.RescheduleKind(role, phase))
	s.announce(b)
	log.Info().Str("module", "app.reschedule").Str("booking", string(id)).Str("actor", string(actor)).Str("status", string(outcome)).Msg("reschedule resolved")
	return b, nil
}

// Withdraw clears a pending proposal back to none. Only the initiator may
// withdraw. The counterpart gets no notification, only the booking-updated
// event every transition emits.
func (s *Rescheduler) Withdraw(ctx context.Context, id domain.BookingID, actor domain.UserID) (*domain.Booking, error) {
	unlock := s.locks.Lock("booking:" + string(id))
	defer unlock()

	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(actor) {
		return nil, fmt.Errorf("%w: %s", core.ErrIllegalTransition, domain.ErrNotParty)
	}
	if b.RescheduleStatus() != domain.ReschedulePending {
		return nil, fmt.Errorf("%w: booking %s has no pending proposal", core.ErrIllegalTransition, id)
	}
	if b.Reschedule.Initiator != actor {
		return nil, fmt.Errorf("%w: only the initiator may withdraw", core.ErrIllegalTransition)
	}

	b.Reschedule = nil
	if err := s.bookings.SaveReschedule(ctx, b, domain.ReschedulePending); err != nil {
		return nil, fmt.Errorf("save withdrawal: %w", err)
	}
	s.announce(b)
	log.Info().Str("module", "app.reschedule").Str("booking", string(id)).Str("actor", string(actor)).Msg("reschedule withdrawn")
	return b, nil
}

func (s *Rescheduler) load(ctx context.Context, id domain.BookingID) (*domain.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// dispatch sends the transition notification; reschedule kinds carry no
// conversation room, they are never presence-suppressed.
func (s *Rescheduler) dispatch(ctx context.Context, source, target domain.UserID, kind domain.Kind) {
	if err := s.notifier.Notify(ctx, source, target, kind, ""); err != nil {
		// The transition is already durable; a lost notification is a
		// diagnostic, not a rollback.
		log.Error().Err(err).Str("module", "app.reschedule").Str("kind", string(kind)).Msg("notify transition")
	}
}

// announce pushes the updated booking to both parties' personal rooms.
func (s *Rescheduler) announce(b *domain.Booking) {
	ev := bookingUpdatedEvent(b)
	s.bcast.ToUser(b.Student, ev)
	s.bcast.ToUser(b.Teacher, ev)
}
