package psp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/lumicrm/payments-backend/pkg/config"
	"github.com/lumicrm/payments-backend/pkg/enums"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

const (
	squareSandboxEnv    = "sandbox"
	squareProductionEnv = "production"
)

var (
	errSquareTokenRequired = errors.New("square access token is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", squareSandboxEnv, squareProductionEnv)
)

var squareBaseURLs = map[string]string{
	squareSandboxEnv:    "https://connect.squareupsandbox.com",
	squareProductionEnv: "https://connect.squareup.com",
}

// SquareExecutor charges cards on file through the Square Payments API.
type SquareExecutor struct {
	sdk        *sqclient.Client
	locationID string
	logg       *logger.Logger
}

// NewSquareExecutor validates the credentials and builds the SDK client.
func NewSquareExecutor(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*SquareExecutor, error) {
	env, err := normalizeSquareEnv(cfg.Environment)
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errSquareTokenRequired
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(squareBaseURLs[env]),
		sqoption.WithToken(accessToken),
	)
	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("square executor initialized (%s)", env))
	}
	return &SquareExecutor{sdk: sdk, locationID: cfg.LocationID, logg: logg}, nil
}

func (s *SquareExecutor) Provider() enums.PSPProvider {
	return enums.PSPProviderSquare
}

func (s *SquareExecutor) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	request := &sq.CreatePaymentRequest{
		IdempotencyKey: req.IdempotencyKey,
		SourceID:       req.MandateRef,
		AmountMoney:    squareMoney(MinorUnits(req.Amount), req.Currency),
		Autocomplete:   sq.Bool(true),
	}
	if s.locationID != "" {
		request.LocationID = sq.String(s.locationID)
	}
	if req.CustomerRef != "" {
		request.CustomerID = sq.String(req.CustomerRef)
	}
	if note := strings.TrimSpace(req.Description); note != "" {
		request.Note = sq.String(note)
	}

	resp, err := s.sdk.Payments.Create(ctx, request)
	if err != nil {
		var apiErr *sqcore.APIError
		if errors.As(err, &apiErr) {
			return s.rejection(apiErr), nil
		}
		return nil, err
	}

	payment := resp.GetPayment()
	status := strings.ToUpper(squareString(payment.GetStatus()))
	switch status {
	case "COMPLETED", "APPROVED", "PENDING":
		return &ChargeResult{
			Outcome:           OutcomeAccepted,
			ProviderPaymentID: squareString(payment.GetID()),
		}, nil
	default:
		return &ChargeResult{
			Outcome:           OutcomeRejected,
			ProviderPaymentID: squareString(payment.GetID()),
			Code:              enums.OutcomeCodeProcessorError,
			Message:           fmt.Sprintf("payment ended in status %s", status),
		}, nil
	}
}

func (s *SquareExecutor) rejection(apiErr *sqcore.APIError) *ChargeResult {
	code := enums.OutcomeCodeProcessorError
	message := apiErr.Error()
	for _, sqErr := range extractSquareErrors(apiErr) {
		if sqErr == nil {
			continue
		}
		if mapped, ok := outcomeFromSquare(sqErr.Code); ok {
			code = mapped
			if sqErr.Detail != nil {
				message = *sqErr.Detail
			}
			break
		}
	}
	if apiErr.StatusCode == 429 {
		code = enums.OutcomeCodeRateLimited
	}
	return &ChargeResult{
		Outcome: OutcomeRejected,
		Code:    code,
		Message: message,
	}
}

func outcomeFromSquare(code sq.ErrorCode) (enums.OutcomeCode, bool) {
	switch code {
	case sq.ErrorCodeInsufficientFunds:
		return enums.OutcomeCodeInsufficientFunds, true
	case sq.ErrorCodeCardExpired, sq.ErrorCodeInvalidCard, sq.ErrorCodeInvalidCardData:
		return enums.OutcomeCodeInvalidInstrument, true
	case sq.ErrorCodeCardDeclinedVerificationRequired, sq.ErrorCodeCvvFailure:
		return enums.OutcomeCodeInvalidInstrument, true
	case sq.ErrorCodeRateLimited:
		return enums.OutcomeCodeRateLimited, true
	case sq.ErrorCodeBadRequest, sq.ErrorCodeInvalidValue, sq.ErrorCodeMissingRequiredParameter:
		return enums.OutcomeCodeValidation, true
	case sq.ErrorCodeTemporaryError, sq.ErrorCodeInternalServerError, sq.ErrorCodeGatewayTimeout:
		return enums.OutcomeCodeProcessorError, true
	default:
		return "", false
	}
}

func extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func squareMoney(cents int64, currency string) *sq.Money {
	if cents == 0 {
		return nil
	}
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = "EUR"
	}
	sqCurrency := sq.Currency(code)
	return &sq.Money{
		Amount:   &cents,
		Currency: &sqCurrency,
	}
}

func squareString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeSquareEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = squareSandboxEnv
	}
	switch env {
	case squareSandboxEnv, squareProductionEnv:
		return env, nil
	}
	return "", errInvalidSquareEnv
}
