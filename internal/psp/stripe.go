package psp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/lumicrm/payments-backend/pkg/config"
	"github.com/lumicrm/payments-backend/pkg/enums"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

const (
	stripeTestEnv = "test"
	stripeLiveEnv = "live"
)

var (
	errStripeKeyRequired = errors.New("stripe api key is required")
	errInvalidStripeEnv  = fmt.Errorf("stripe environment must be %q or %q", stripeTestEnv, stripeLiveEnv)
)

// StripeExecutor charges mandates through Stripe PaymentIntents. Charges are
// confirmed off-session against a saved payment method; the idempotency key
// rides on the API call so Stripe deduplicates resubmissions itself.
type StripeExecutor struct {
	environment string
	logg        *logger.Logger
}

// NewStripeExecutor validates the credentials and initializes Stripe once.
func NewStripeExecutor(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*StripeExecutor, error) {
	env, err := normalizeStripeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errStripeKeyRequired
	}
	if err := validateStripeKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey
	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe executor initialized (%s)", env))
	}
	return &StripeExecutor{environment: env, logg: logg}, nil
}

func (s *StripeExecutor) Provider() enums.PSPProvider {
	return enums.PSPProviderStripe
}

func (s *StripeExecutor) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(MinorUnits(req.Amount)),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(req.MandateRef),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if req.CustomerRef != "" {
		params.Customer = stripe.String(req.CustomerRef)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)

	intent, err := paymentintent.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return s.rejection(stripeErr), nil
		}
		// Transport-level failure: the charge may or may not exist on the
		// Stripe side, so this is never reported as a rejection.
		return nil, err
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusProcessing:
		return &ChargeResult{
			Outcome:           OutcomeAccepted,
			ProviderPaymentID: intent.ID,
		}, nil
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresPaymentMethod:
		// An off-session mandate charge must not need the payer present.
		return &ChargeResult{
			Outcome:           OutcomeRejected,
			ProviderPaymentID: intent.ID,
			Code:              enums.OutcomeCodeInvalidInstrument,
			Message:           fmt.Sprintf("payment intent ended in %s", intent.Status),
		}, nil
	default:
		return &ChargeResult{
			Outcome:           OutcomeRejected,
			ProviderPaymentID: intent.ID,
			Code:              enums.OutcomeCodeProcessorError,
			Message:           fmt.Sprintf("unexpected payment intent status %s", intent.Status),
		}, nil
	}
}

func (s *StripeExecutor) rejection(stripeErr *stripe.Error) *ChargeResult {
	result := &ChargeResult{
		Outcome: OutcomeRejected,
		Code:    outcomeFromStripe(stripeErr),
		Message: stripeErr.Msg,
	}
	if stripeErr.PaymentIntent != nil {
		result.ProviderPaymentID = stripeErr.PaymentIntent.ID
	}
	return result
}

func outcomeFromStripe(stripeErr *stripe.Error) enums.OutcomeCode {
	switch stripeErr.DeclineCode {
	case stripe.DeclineCodeInsufficientFunds:
		return enums.OutcomeCodeInsufficientFunds
	case stripe.DeclineCodeFraudulent, stripe.DeclineCodeStolenCard, stripe.DeclineCodeLostCard:
		return enums.OutcomeCodeFraudBlock
	case stripe.DeclineCodeExpiredCard, stripe.DeclineCodeIncorrectNumber:
		return enums.OutcomeCodeInvalidInstrument
	}

	switch stripeErr.Code {
	case stripe.ErrorCodeRateLimit:
		return enums.OutcomeCodeRateLimited
	case stripe.ErrorCodeExpiredCard, stripe.ErrorCodeIncorrectNumber, stripe.ErrorCodeCardDeclineRateLimitExceeded:
		return enums.OutcomeCodeInvalidInstrument
	case stripe.ErrorCodeAmountTooLarge, stripe.ErrorCodeAmountTooSmall, stripe.ErrorCodeParameterInvalidEmpty:
		return enums.OutcomeCodeValidation
	}

	if stripeErr.Type == stripe.ErrorTypeInvalidRequest {
		return enums.OutcomeCodeValidation
	}
	return enums.OutcomeCodeProcessorError
}

func normalizeStripeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = stripeTestEnv
	}
	switch env {
	case stripeTestEnv, stripeLiveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateStripeKey(env, key string) error {
	switch env {
	case stripeTestEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", stripeTestEnv)
	case stripeLiveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", stripeLiveEnv)
	default:
		return errInvalidStripeEnv
	}
}
