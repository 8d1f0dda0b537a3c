package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/polyglotte/relay/internal/core"
	"github.com/polyglotte/relay/internal/domain"
)

func (s *Store) CreateBooking(ctx context.Context, b *domain.Booking) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO bookings (teacher, student, date, timeslot, duration, language)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, b.Teacher, b.Student, b.Date, b.Timeslot, b.Duration, b.Language).Scan(&b.ID)
	if err != nil {
		return unavailable("create booking", err)
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id domain.BookingID) (*domain.Booking, error) {
	var (
		b           domain.Booking
		newDate     *string
		newTimeslot *string
		status      domain.RescheduleStatus
		initiator   *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, teacher, student, date, timeslot, duration, language,
		       reschedule_new_date, reschedule_new_timeslot, reschedule_status, reschedule_initiator
		FROM bookings
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Teacher, &b.Student, &b.Date, &b.Timeslot, &b.Duration, &b.Language,
		&newDate, &newTimeslot, &status, &initiator)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: booking %s", core.ErrNotFound, id)
		}
		return nil, unavailable("get booking", err)
	}

	if status != domain.RescheduleNone {
		b.Reschedule = &domain.Reschedule{Status: status}
		if newDate != nil {
			b.Reschedule.NewDate = *newDate
		}
		if newTimeslot != nil {
			b.Reschedule.NewTimeslot = *newTimeslot
		}
		if initiator != nil {
			b.Reschedule.Initiator = domain.UserID(*initiator)
		}
	}
	return &b, nil
}

// SaveReschedule writes the booking's schedule and reschedule sub-record,
// conditioned on the status the caller observed. A zero-row update means
// a concurrent transition won the race.
func (s *Store) SaveReschedule(ctx context.Context, b *domain.Booking, expect domain.RescheduleStatus) error {
	var (
		newDate     *string
		newTimeslot *string
		status      = domain.RescheduleNone
		initiator   *string
	)
	if b.Reschedule != nil {
		newDate = &b.Reschedule.NewDate
		newTimeslot = &b.Reschedule.NewTimeslot
		status = b.Reschedule.Status
		init := string(b.Reschedule.Initiator)
		initiator = &init
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE bookings
		SET date = $1, timeslot = $2,
		    reschedule_new_date = $3, reschedule_new_timeslot = $4,
		    reschedule_status = $5, reschedule_initiator = $6
		WHERE id = $7 AND reschedule_status = $8
	`, b.Date, b.Timeslot, newDate, newTimeslot, status, initiator, b.ID, expect)
	if err != nil {
		return unavailable("save reschedule", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, b.ID).Scan(&exists); err != nil {
			return unavailable("check booking", err)
		}
		if !exists {
			return fmt.Errorf("%w: booking %s", core.ErrNotFound, b.ID)
		}
		return fmt.Errorf("%w: booking %s is no longer %s", core.ErrIllegalTransition, b.ID, expect)
	}
	return nil
}
