package schedules

import (
	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
)

// transitions is the closed schedule state machine. PAID and CANCELLED are
// absorbing; UNPAID is terminal for the engine (manual revival happens
// outside this subsystem).
var transitions = map[enums.ScheduleStatus][]enums.ScheduleStatus{
	enums.ScheduleStatusPlanned: {
		enums.ScheduleStatusProcessing,
		enums.ScheduleStatusCancelled,
	},
	enums.ScheduleStatusProcessing: {
		enums.ScheduleStatusPending,
		enums.ScheduleStatusPaid,
		enums.ScheduleStatusFailed,
		enums.ScheduleStatusCancelled,
	},
	enums.ScheduleStatusPending: {
		enums.ScheduleStatusPaid,
		enums.ScheduleStatusFailed,
	},
	enums.ScheduleStatusFailed: {
		enums.ScheduleStatusProcessing,
		enums.ScheduleStatusUnpaid,
		enums.ScheduleStatusCancelled,
	},
	enums.ScheduleStatusPaid:      {},
	enums.ScheduleStatusUnpaid:    {},
	enums.ScheduleStatusCancelled: {},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to enums.ScheduleStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// EnsureTransition returns a STATE_CONFLICT error when from -> to is not
// allowed by the machine.
func EnsureTransition(from, to enums.ScheduleStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "schedule transition disallowed").
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}
