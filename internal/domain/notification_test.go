package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKind_Valid(t *testing.T) {
	req := require.New(t)

	req.True(KindMessage.Valid())
	req.True(KindRescheduleTeacherDecline.Valid())
	req.False(Kind("carrier-pigeon").Valid())
	req.False(Kind("").Valid())
}

// Every role/phase combination must land on a declared kind, so the client
// copy lookup never misses.
func TestRescheduleKind_CoversEveryTransition(t *testing.T) {
	req := require.New(t)

	req.Equal(KindRescheduleStudentPending, RescheduleKind(RoleStudent, PhasePending))
	req.Equal(KindRescheduleTeacherAccept, RescheduleKind(RoleTeacher, PhaseAccept))

	for _, role := range []Role{RoleStudent, RoleTeacher} {
		for _, phase := range []ReschedulePhase{PhasePending, PhaseAccept, PhaseDecline} {
			req.True(RescheduleKind(role, phase).Valid())
		}
	}
}
