package enums

import "fmt"

// ConfigLevel identifies which cascade level supplied the effective debit
// configuration, recorded for audit on every computed date.
type ConfigLevel string

const (
	ConfigLevelContract ConfigLevel = "CONTRACT"
	ConfigLevelClient   ConfigLevel = "CLIENT"
	ConfigLevelCompany  ConfigLevel = "COMPANY"
	ConfigLevelSystem   ConfigLevel = "SYSTEM"
)

var validConfigLevels = []ConfigLevel{
	ConfigLevelContract,
	ConfigLevelClient,
	ConfigLevelCompany,
	ConfigLevelSystem,
}

// String implements fmt.Stringer.
func (c ConfigLevel) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ConfigLevel.
func (c ConfigLevel) IsValid() bool {
	for _, candidate := range validConfigLevels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConfigLevel converts raw input into a ConfigLevel.
func ParseConfigLevel(value string) (ConfigLevel, error) {
	for _, candidate := range validConfigLevels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid config level %q", value)
}
