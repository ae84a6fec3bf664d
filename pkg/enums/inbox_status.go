package enums

import "fmt"

// InboxStatus tracks the processing state of an inbound event record.
type InboxStatus string

const (
	InboxStatusReceived  InboxStatus = "RECEIVED"
	InboxStatusVerified  InboxStatus = "VERIFIED"
	InboxStatusProcessed InboxStatus = "PROCESSED"
	InboxStatusFailed    InboxStatus = "FAILED"
	InboxStatusDuplicate InboxStatus = "DUPLICATE"
	InboxStatusRejected  InboxStatus = "REJECTED"
)

var validInboxStatuses = []InboxStatus{
	InboxStatusReceived,
	InboxStatusVerified,
	InboxStatusProcessed,
	InboxStatusFailed,
	InboxStatusDuplicate,
	InboxStatusRejected,
}

// String implements fmt.Stringer.
func (i InboxStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known InboxStatus.
func (i InboxStatus) IsValid() bool {
	for _, candidate := range validInboxStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInboxStatus converts raw input into an InboxStatus.
func ParseInboxStatus(value string) (InboxStatus, error) {
	for _, candidate := range validInboxStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inbox status %q", value)
}
