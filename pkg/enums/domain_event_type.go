package enums

import "fmt"

// DomainEventType is the canonical event_type carried by internal
// domain events on the payments topic.
type DomainEventType string

const (
	DomainEventContractSigned  DomainEventType = "contract.signed"
	DomainEventPaymentReceived DomainEventType = "payment.received"
	DomainEventPaymentRejected DomainEventType = "payment.rejected"
)

var validDomainEventTypes = []DomainEventType{
	DomainEventContractSigned,
	DomainEventPaymentReceived,
	DomainEventPaymentRejected,
}

// String implements fmt.Stringer.
func (d DomainEventType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DomainEventType.
func (d DomainEventType) IsValid() bool {
	for _, candidate := range validDomainEventTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDomainEventType converts raw input into a DomainEventType.
func ParseDomainEventType(value string) (DomainEventType, error) {
	for _, candidate := range validDomainEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid domain event type %q", value)
}
