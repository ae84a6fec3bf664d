package psp

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumicrm/payments-backend/pkg/enums"
)

// SandboxExecutor is the local stand-in adapter used in development and in
// tests. Behavior is keyed off the mandate reference so scenarios are
// reproducible without a provider account:
//
//	decline:<code>  rejects with that outcome code
//	timeout         blocks until the context deadline
//	anything else   accepts
type SandboxExecutor struct{}

// NewSandboxExecutor returns the deterministic sandbox adapter.
func NewSandboxExecutor() *SandboxExecutor {
	return &SandboxExecutor{}
}

func (s *SandboxExecutor) Provider() enums.PSPProvider {
	return enums.PSPProviderSandbox
}

func (s *SandboxExecutor) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	mandate := strings.TrimSpace(req.MandateRef)

	if code, ok := strings.CutPrefix(mandate, "decline:"); ok {
		outcome, err := enums.ParseOutcomeCode(code)
		if err != nil {
			outcome = enums.OutcomeCodeProcessorError
		}
		return &ChargeResult{
			Outcome: OutcomeRejected,
			Code:    outcome,
			Message: fmt.Sprintf("sandbox decline %s", outcome),
		}, nil
	}

	if mandate == "timeout" {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	return &ChargeResult{
		Outcome:           OutcomeAccepted,
		ProviderPaymentID: "sandbox_" + req.IdempotencyKey,
	}, nil
}
