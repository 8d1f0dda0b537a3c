package domain

import (
	"fmt"
	"time"
)

type NotificationID string

// Kind is the closed set of notification types. The wire values match the
// strings the web client already renders copy for, including the
// role-encoded reschedule kinds (the role is the acting party, so the
// recipient sees "your student moved the lesson" vs "your teacher ...").
type Kind string

const (
	KindMessage       Kind = "message"
	KindBooking       Kind = "booking"
	KindCancelStudent Kind = "cancel-student"
	KindCancelTeacher Kind = "cancel-teacher"
	KindReview        Kind = "review"
	KindClone         Kind = "clone"

	KindRescheduleStudentPending Kind = "reschedule-student-pending"
	KindRescheduleStudentAccept  Kind = "reschedule-student-accept"
	KindRescheduleStudentDecline Kind = "reschedule-student-decline"
	KindRescheduleTeacherPending Kind = "reschedule-teacher-pending"
	KindRescheduleTeacherAccept  Kind = "reschedule-teacher-accept"
	KindRescheduleTeacherDecline Kind = "reschedule-teacher-decline"
)

var allKinds = map[Kind]struct{}{
	KindMessage:                  {},
	KindBooking:                  {},
	KindCancelStudent:            {},
	KindCancelTeacher:            {},
	KindReview:                   {},
	KindClone:                    {},
	KindRescheduleStudentPending: {},
	KindRescheduleStudentAccept:  {},
	KindRescheduleStudentDecline: {},
	KindRescheduleTeacherPending: {},
	KindRescheduleTeacherAccept:  {},
	KindRescheduleTeacherDecline: {},
}

func (k Kind) Valid() bool {
	_, ok := allKinds[k]
	return ok
}

type ReschedulePhase string

const (
	PhasePending ReschedulePhase = "pending"
	PhaseAccept  ReschedulePhase = "accept"
	PhaseDecline ReschedulePhase = "decline"
)

// RescheduleKind builds the role-encoded kind for a transition performed
// by the given role.
func RescheduleKind(actor Role, phase ReschedulePhase) Kind {
	return Kind(fmt.Sprintf("reschedule-%s-%s", actor, phase))
}

type Notification struct {
	ID        NotificationID `json:"id"`
	Source    UserID         `json:"source"`
	Target    UserID         `json:"target"`
	Kind      Kind           `json:"kind"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}
