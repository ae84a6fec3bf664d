package enums

import "fmt"

// ScheduleStatus tracks the lifecycle of a payment schedule.
type ScheduleStatus string

const (
	ScheduleStatusPlanned    ScheduleStatus = "PLANNED"
	ScheduleStatusProcessing ScheduleStatus = "PROCESSING"
	ScheduleStatusPending    ScheduleStatus = "PENDING"
	ScheduleStatusPaid       ScheduleStatus = "PAID"
	ScheduleStatusFailed     ScheduleStatus = "FAILED"
	ScheduleStatusUnpaid     ScheduleStatus = "UNPAID"
	ScheduleStatusCancelled  ScheduleStatus = "CANCELLED"
)

var validScheduleStatuses = []ScheduleStatus{
	ScheduleStatusPlanned,
	ScheduleStatusProcessing,
	ScheduleStatusPending,
	ScheduleStatusPaid,
	ScheduleStatusFailed,
	ScheduleStatusUnpaid,
	ScheduleStatusCancelled,
}

// String implements fmt.Stringer.
func (s ScheduleStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ScheduleStatus.
func (s ScheduleStatus) IsValid() bool {
	for _, candidate := range validScheduleStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
// PAID and CANCELLED are absorbing; UNPAID is terminal for the engine but
// may be revived by manual operator action outside this subsystem.
func (s ScheduleStatus) IsTerminal() bool {
	return s == ScheduleStatusPaid || s == ScheduleStatusCancelled || s == ScheduleStatusUnpaid
}

// ParseScheduleStatus converts raw input into a ScheduleStatus.
func ParseScheduleStatus(value string) (ScheduleStatus, error) {
	for _, candidate := range validScheduleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid schedule status %q", value)
}
