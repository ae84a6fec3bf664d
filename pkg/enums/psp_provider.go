package enums

import "fmt"

// PSPProvider identifies a supported payment service provider adapter.
type PSPProvider string

const (
	PSPProviderStripe  PSPProvider = "stripe"
	PSPProviderSquare  PSPProvider = "square"
	PSPProviderSandbox PSPProvider = "sandbox"
)

var validPSPProviders = []PSPProvider{
	PSPProviderStripe,
	PSPProviderSquare,
	PSPProviderSandbox,
}

// String implements fmt.Stringer.
func (p PSPProvider) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PSPProvider.
func (p PSPProvider) IsValid() bool {
	for _, candidate := range validPSPProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePSPProvider converts raw input into a PSPProvider.
func ParsePSPProvider(value string) (PSPProvider, error) {
	for _, candidate := range validPSPProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid psp provider %q", value)
}
