package enums

import "fmt"

// AlertScope classifies what an operator alert is about.
type AlertScope string

const (
	AlertScopePayment  AlertScope = "PAYMENT"
	AlertScopeProvider AlertScope = "PROVIDER"
	AlertScopeSystem   AlertScope = "SYSTEM"
)

var validAlertScopes = []AlertScope{
	AlertScopePayment,
	AlertScopeProvider,
	AlertScopeSystem,
}

// String implements fmt.Stringer.
func (a AlertScope) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AlertScope.
func (a AlertScope) IsValid() bool {
	for _, candidate := range validAlertScopes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAlertScope converts raw input into an AlertScope.
func ParseAlertScope(value string) (AlertScope, error) {
	for _, candidate := range validAlertScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid alert scope %q", value)
}
