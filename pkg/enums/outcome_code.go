package enums

import "fmt"

// OutcomeCode is a normalized failure code reported by a charge executor
// or carried on a payment.rejected event.
type OutcomeCode string

const (
	OutcomeCodeInsufficientFunds OutcomeCode = "insufficient_funds"
	OutcomeCodeProcessorError    OutcomeCode = "processor_error"
	OutcomeCodeRateLimited       OutcomeCode = "rate_limited"
	OutcomeCodeBankTimeout       OutcomeCode = "bank_timeout"

	OutcomeCodeInvalidInstrument OutcomeCode = "invalid_instrument"
	OutcomeCodeMandateCancelled  OutcomeCode = "mandate_cancelled"
	OutcomeCodeMandateRevoked    OutcomeCode = "mandate_revoked"
	OutcomeCodeFraudBlock        OutcomeCode = "fraud_block"
	OutcomeCodeAccountClosed     OutcomeCode = "account_closed"

	OutcomeCodeValidation OutcomeCode = "validation_error"
)

var validOutcomeCodes = []OutcomeCode{
	OutcomeCodeInsufficientFunds,
	OutcomeCodeProcessorError,
	OutcomeCodeRateLimited,
	OutcomeCodeBankTimeout,
	OutcomeCodeInvalidInstrument,
	OutcomeCodeMandateCancelled,
	OutcomeCodeMandateRevoked,
	OutcomeCodeFraudBlock,
	OutcomeCodeAccountClosed,
	OutcomeCodeValidation,
}

// String implements fmt.Stringer.
func (o OutcomeCode) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OutcomeCode.
func (o OutcomeCode) IsValid() bool {
	for _, candidate := range validOutcomeCodes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutcomeCode converts raw input into an OutcomeCode.
func ParseOutcomeCode(value string) (OutcomeCode, error) {
	for _, candidate := range validOutcomeCodes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outcome code %q", value)
}
