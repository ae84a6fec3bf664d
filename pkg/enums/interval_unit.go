package enums

import "fmt"

// IntervalUnit is the cadence unit of a recurring schedule.
type IntervalUnit string

const (
	IntervalUnitWeek    IntervalUnit = "WEEK"
	IntervalUnitMonth   IntervalUnit = "MONTH"
	IntervalUnitQuarter IntervalUnit = "QUARTER"
	IntervalUnitYear    IntervalUnit = "YEAR"
)

var validIntervalUnits = []IntervalUnit{
	IntervalUnitWeek,
	IntervalUnitMonth,
	IntervalUnitQuarter,
	IntervalUnitYear,
}

// String implements fmt.Stringer.
func (i IntervalUnit) String() string {
	return string(i)
}

// IsValid reports whether the value is a known IntervalUnit.
func (i IntervalUnit) IsValid() bool {
	for _, candidate := range validIntervalUnits {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseIntervalUnit converts raw input into an IntervalUnit.
func ParseIntervalUnit(value string) (IntervalUnit, error) {
	for _, candidate := range validIntervalUnits {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid interval unit %q", value)
}
