package enums

import "fmt"

// IntentStatus tracks one charge attempt for a billing cycle.
type IntentStatus string

const (
	IntentStatusPending   IntentStatus = "PENDING"
	IntentStatusPaid      IntentStatus = "PAID"
	IntentStatusRejected  IntentStatus = "REJECTED"
	IntentStatusAmbiguous IntentStatus = "AMBIGUOUS"
	IntentStatusCancelled IntentStatus = "CANCELLED"
)

var validIntentStatuses = []IntentStatus{
	IntentStatusPending,
	IntentStatusPaid,
	IntentStatusRejected,
	IntentStatusAmbiguous,
	IntentStatusCancelled,
}

// String implements fmt.Stringer.
func (i IntentStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known IntentStatus.
func (i IntentStatus) IsValid() bool {
	for _, candidate := range validIntentStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the intent has reached a final outcome.
// AMBIGUOUS is non-terminal: a later webhook or operator action resolves it.
func (i IntentStatus) IsTerminal() bool {
	return i == IntentStatusPaid || i == IntentStatusRejected || i == IntentStatusCancelled
}

// ParseIntentStatus converts raw input into an IntentStatus.
func ParseIntentStatus(value string) (IntentStatus, error) {
	for _, candidate := range validIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid intent status %q", value)
}
