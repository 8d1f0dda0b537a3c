package domain

import "errors"

type BookingID string

var ErrNotParty = errors.New("user is not a party of this booking")

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

type RescheduleStatus string

const (
	RescheduleNone      RescheduleStatus = "none"
	ReschedulePending   RescheduleStatus = "pending"
	RescheduleAccepted  RescheduleStatus = "accepted"
	RescheduleDeclined  RescheduleStatus = "declined"
	RescheduleWithdrawn RescheduleStatus = "withdrawn"
)

// Terminal reports whether a fresh proposal may replace this one.
func (s RescheduleStatus) Terminal() bool {
	return s == RescheduleNone || s == RescheduleAccepted ||
		s == RescheduleDeclined || s == RescheduleWithdrawn
}

// Reschedule is the proposal sub-record attached to a booking. At most one
// exists per booking; only a pending one blocks a new proposal.
type Reschedule struct {
	NewDate     string           `json:"new_date"`
	NewTimeslot string           `json:"new_timeslot"`
	Status      RescheduleStatus `json:"status"`
	Initiator   UserID           `json:"initiator"`
}

// Booking is a scheduled lesson between a teacher and a student.
type Booking struct {
	ID       BookingID `json:"id"`
	Teacher  UserID    `json:"teacher"`
	Student  UserID    `json:"student"`
	Date     string    `json:"date"`
	Timeslot string    `json:"timeslot"`
	Duration int       `json:"duration"`
	Language string    `json:"language"`

	Reschedule *Reschedule `json:"reschedule,omitempty"`
}

// RescheduleStatus treats an absent sub-record as none.
func (b *Booking) RescheduleStatus() RescheduleStatus {
	if b.Reschedule == nil {
		return RescheduleNone
	}
	return b.Reschedule.Status
}

func (b *Booking) IsParty(u UserID) bool {
	return u == b.Teacher || u == b.Student
}

func (b *Booking) RoleOf(u UserID) (Role, error) {
	switch u {
	case b.Student:
		return RoleStudent, nil
	case b.Teacher:
		return RoleTeacher, nil
	default:
		return "", ErrNotParty
	}
}

// Counterpart resolves the other party of the lesson.
func (b *Booking) Counterpart(u UserID) (UserID, error) {
	switch u {
	case b.Student:
		return b.Teacher, nil
	case b.Teacher:
		return b.Student, nil
	default:
		return "", ErrNotParty
	}
}
