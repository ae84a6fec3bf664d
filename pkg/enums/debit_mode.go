package enums

import "fmt"

// DebitMode selects how the target debit day of a cycle month is derived.
type DebitMode string

const (
	DebitModeFixedDay DebitMode = "FIXED_DAY"
	DebitModeLotBatch DebitMode = "LOT_BATCH"
)

var validDebitModes = []DebitMode{
	DebitModeFixedDay,
	DebitModeLotBatch,
}

// String implements fmt.Stringer.
func (d DebitMode) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DebitMode.
func (d DebitMode) IsValid() bool {
	for _, candidate := range validDebitModes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDebitMode converts raw input into a DebitMode.
func ParseDebitMode(value string) (DebitMode, error) {
	for _, candidate := range validDebitModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid debit mode %q", value)
}
