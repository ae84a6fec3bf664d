package enums

import "fmt"

// ShiftStrategy selects how a non-business target date is moved.
type ShiftStrategy string

const (
	ShiftStrategyNext     ShiftStrategy = "NEXT_BUSINESS_DAY"
	ShiftStrategyPrevious ShiftStrategy = "PREVIOUS_BUSINESS_DAY"
	ShiftStrategyNearest  ShiftStrategy = "NEAREST_BUSINESS_DAY"
)

var validShiftStrategies = []ShiftStrategy{
	ShiftStrategyNext,
	ShiftStrategyPrevious,
	ShiftStrategyNearest,
}

// String implements fmt.Stringer.
func (s ShiftStrategy) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShiftStrategy.
func (s ShiftStrategy) IsValid() bool {
	for _, candidate := range validShiftStrategies {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShiftStrategy converts raw input into a ShiftStrategy.
func ParseShiftStrategy(value string) (ShiftStrategy, error) {
	for _, candidate := range validShiftStrategies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shift strategy %q", value)
}
