package psp

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lumicrm/payments-backend/pkg/enums"
)

// Outcome is the normalized result of a charge submission.
type Outcome string

const (
	// OutcomeAccepted means the provider took the charge; settlement is
	// confirmed later by webhook.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeRejected means the provider refused the charge synchronously.
	OutcomeRejected Outcome = "rejected"
	// OutcomeAmbiguous means the submission did not complete within the
	// deadline; the charge may or may not exist on the provider side.
	OutcomeAmbiguous Outcome = "ambiguous"
)

// ChargeRequest carries one charge submission to a provider adapter.
// The idempotency key is forwarded verbatim so a resubmitted cycle hits the
// provider's own deduplication instead of creating a second charge.
type ChargeRequest struct {
	IdempotencyKey string
	Amount         decimal.Decimal
	Currency       string
	MandateRef     string
	CustomerRef    string
	Description    string
}

// ChargeResult is the provider's answer, normalized across adapters.
type ChargeResult struct {
	Outcome           Outcome
	ProviderPaymentID string
	Code              enums.OutcomeCode
	Message           string
}

// ChargeExecutor submits charges to one payment service provider.
// Implementations must honor ctx cancellation: a deadline hit mid-call is
// reported as OutcomeAmbiguous by the caller, never as a rejection.
type ChargeExecutor interface {
	Provider() enums.PSPProvider
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// MinorUnits converts a decimal amount into the provider's integer minor
// units (cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
