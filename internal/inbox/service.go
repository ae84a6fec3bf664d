package inbox

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumicrm/payments-backend/internal/alerts"
	"github.com/lumicrm/payments-backend/internal/emission"
	"github.com/lumicrm/payments-backend/internal/retry"
	"github.com/lumicrm/payments-backend/internal/schedules"
	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

const alertCodeEventProcessingFailed = "EVENT_PROCESSING_FAILED"

// Envelope is one inbound event before verification. Trusted marks internal
// deliveries (the domain subscription) whose transport already authenticates
// the sender; webhook deliveries carry an HMAC signature instead.
type Envelope struct {
	Provider  string
	EventID   string
	EventType string
	Payload   json.RawMessage
	Signature string
	Trusted   bool
}

// PaymentResultPayload is the body of payment.received / payment.rejected
// events. Events reference the intent directly (by id or by the provider's
// payment id), so out-of-order delivery needs no sequence bookkeeping.
type PaymentResultPayload struct {
	IntentID          *uuid.UUID `json:"intent_id,omitempty"`
	ProviderPaymentID string     `json:"provider_payment_id,omitempty"`
	OutcomeCode       string     `json:"outcome_code,omitempty"`
	Message           string     `json:"message,omitempty"`
}

// CycleAdvancer plans the successor cycle once a recurring schedule settles.
type CycleAdvancer interface {
	AdvanceAfterPaid(ctx context.Context, paid *models.Schedule) (*models.Schedule, error)
}

// ServiceParams groups dependencies for the inbox service.
type ServiceParams struct {
	Repo         Repository
	Guard        *DuplicateGuard
	Intents      emission.IntentRepository
	Schedules    schedules.Repository
	Advancer     CycleAdvancer
	Retry        *retry.Engine
	Alerts       alerts.Sink
	SignatureKey []byte
	Logger       *logger.Logger
	Now          func() time.Time
}

// Service runs the inbound event pipeline: claim by insert, verify, apply.
type Service struct {
	repo         Repository
	guard        *DuplicateGuard
	intents      emission.IntentRepository
	schedules    schedules.Repository
	advancer     CycleAdvancer
	retry        *retry.Engine
	alerts       alerts.Sink
	signatureKey []byte
	logg         *logger.Logger
	now          func() time.Time
}

// NewService builds an inbox service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Intents == nil {
		return nil, errors.New("intents repo is required")
	}
	if params.Schedules == nil {
		return nil, errors.New("schedules repo is required")
	}
	if params.Advancer == nil {
		return nil, errors.New("cycle advancer is required")
	}
	if params.Retry == nil {
		return nil, errors.New("retry engine is required")
	}
	if params.Alerts == nil {
		return nil, errors.New("alert sink is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.SignatureKey) == 0 {
		return nil, errors.New("signature key is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:         params.Repo,
		guard:        params.Guard,
		intents:      params.Intents,
		schedules:    params.Schedules,
		advancer:     params.Advancer,
		retry:        params.Retry,
		alerts:       params.Alerts,
		signatureKey: params.SignatureKey,
		logg:         params.Logger,
		now:          now,
	}, nil
}

// Process runs one delivery through the pipeline. Duplicates report
// InboxStatusDuplicate with no error: at-least-once senders must see an
// acknowledgement even when nothing was applied.
func (s *Service) Process(ctx context.Context, envelope Envelope) (enums.InboxStatus, error) {
	if envelope.Provider == "" || envelope.EventID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "event provider and id are required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_provider": envelope.Provider,
		"event_id":       envelope.EventID,
		"event_type":     envelope.EventType,
	})

	if !s.guard.FirstDelivery(ctx, envelope.Provider, envelope.EventID) {
		s.logg.Info(ctx, "duplicate event absorbed by redis guard")
		return enums.InboxStatusDuplicate, nil
	}

	record := &models.InboxEvent{
		ID:              uuid.New(),
		Provider:        envelope.Provider,
		ProviderEventID: envelope.EventID,
		EventType:       envelope.EventType,
		RawPayload:      envelope.Payload,
		Status:          enums.InboxStatusReceived,
	}
	claimed, err := s.repo.Claim(ctx, record)
	if err != nil {
		s.guard.Forget(ctx, envelope.Provider, envelope.EventID)
		return "", err
	}
	if !claimed {
		s.logg.Info(ctx, "duplicate event, already claimed")
		return enums.InboxStatusDuplicate, nil
	}

	if !s.verify(envelope) {
		// Payload is retained for audit but never applied.
		if err := s.repo.MarkStatus(ctx, record.ID, enums.InboxStatusRejected, nil); err != nil {
			return "", err
		}
		s.logg.Critical(ctx, "event signature verification failed",
			pkgerrors.New(pkgerrors.CodeSignatureInvalid, "signature mismatch"))
		return enums.InboxStatusRejected, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "signature mismatch")
	}
	if err := s.repo.MarkStatus(ctx, record.ID, enums.InboxStatusVerified, map[string]any{
		"signature_valid": true,
	}); err != nil {
		return "", err
	}

	if err := s.apply(ctx, envelope); err != nil {
		markErr := s.repo.MarkStatus(ctx, record.ID, enums.InboxStatusFailed, map[string]any{
			"error": err.Error(),
		})
		if markErr != nil {
			return "", markErr
		}
		// Surfaced to the operator queue; the sender's redelivery is not
		// relied on once the claim row exists.
		s.raiseProcessingAlert(ctx, envelope, err)
		return enums.InboxStatusFailed, err
	}

	processedAt := s.now()
	if err := s.repo.MarkStatus(ctx, record.ID, enums.InboxStatusProcessed, map[string]any{
		"processed_at": processedAt,
	}); err != nil {
		return "", err
	}
	s.logg.Info(ctx, "event processed")
	return enums.InboxStatusProcessed, nil
}

func (s *Service) verify(envelope Envelope) bool {
	if envelope.Trusted {
		return true
	}
	return VerifySignature(s.signatureKey, envelope.Payload, envelope.Signature)
}

// VerifySignature checks the hex HMAC-SHA256 of the payload.
func VerifySignature(key, payload []byte, signature string) bool {
	if signature == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), provided)
}

// SignPayload produces the hex HMAC-SHA256 signature for a payload. Used by
// the sandbox sender and tests.
func SignPayload(key, payload []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Service) apply(ctx context.Context, envelope Envelope) error {
	eventType, err := enums.ParseDomainEventType(envelope.EventType)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported event type").
			WithDetails(map[string]any{"event_type": envelope.EventType})
	}

	switch eventType {
	case enums.DomainEventPaymentReceived:
		return s.applyPaymentReceived(ctx, envelope)
	case enums.DomainEventPaymentRejected:
		return s.applyPaymentRejected(ctx, envelope)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "event type not handled by inbox").
			WithDetails(map[string]any{"event_type": envelope.EventType})
	}
}

func (s *Service) applyPaymentReceived(ctx context.Context, envelope Envelope) error {
	intent, schedule, err := s.resolveTarget(ctx, envelope)
	if err != nil {
		return err
	}
	ctx = s.logg.WithScheduleID(ctx, schedule.ID.String())

	moved, err := s.intents.UpdateStatusIf(ctx, intent.ID,
		[]enums.IntentStatus{enums.IntentStatusPending, enums.IntentStatusAmbiguous},
		enums.IntentStatusPaid, nil)
	if err != nil {
		return err
	}
	if !moved && intent.Status != enums.IntentStatusPaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "intent already settled").
			WithDetails(map[string]any{"intent_status": intent.Status.String()})
	}

	if _, err := s.schedules.UpdateStatusIf(ctx, schedule.ID,
		[]enums.ScheduleStatus{enums.ScheduleStatusProcessing, enums.ScheduleStatusPending},
		enums.ScheduleStatusPaid, nil); err != nil {
		return err
	}
	s.logg.Info(ctx, "payment settled")

	settled, err := s.schedules.FindByID(ctx, schedule.ID)
	if err != nil {
		return err
	}
	if settled == nil || settled.Status != enums.ScheduleStatusPaid {
		return nil
	}
	_, err = s.advancer.AdvanceAfterPaid(ctx, settled)
	return err
}

func (s *Service) applyPaymentRejected(ctx context.Context, envelope Envelope) error {
	intent, schedule, err := s.resolveTarget(ctx, envelope)
	if err != nil {
		return err
	}
	ctx = s.logg.WithScheduleID(ctx, schedule.ID.String())

	var payload PaymentResultPayload
	_ = json.Unmarshal(envelope.Payload, &payload)
	code := enums.OutcomeCodeProcessorError
	if parsed, err := enums.ParseOutcomeCode(payload.OutcomeCode); err == nil {
		code = parsed
	}

	if _, err := s.intents.UpdateStatusIf(ctx, intent.ID,
		[]enums.IntentStatus{enums.IntentStatusPending, enums.IntentStatusAmbiguous},
		enums.IntentStatusRejected, map[string]any{
			"error_code":    code.String(),
			"error_message": payload.Message,
		}); err != nil {
		return err
	}

	return s.retry.HandleFailure(ctx, schedule, &intent.ID, code, payload.Message)
}

func (s *Service) resolveTarget(ctx context.Context, envelope Envelope) (*models.PaymentIntent, *models.Schedule, error) {
	var payload PaymentResultPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed event payload")
	}

	var intent *models.PaymentIntent
	var err error
	switch {
	case payload.IntentID != nil:
		intent, err = s.intents.FindByID(ctx, *payload.IntentID)
	case payload.ProviderPaymentID != "":
		provider, parseErr := enums.ParsePSPProvider(envelope.Provider)
		if parseErr != nil {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown event provider").
				WithDetails(map[string]any{"provider": envelope.Provider})
		}
		intent, err = s.intents.FindByProviderPaymentID(ctx, provider, payload.ProviderPaymentID)
	default:
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "event references no payment intent")
	}
	if err != nil {
		return nil, nil, err
	}
	if intent == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found for event")
	}

	schedule, err := s.schedules.FindByID(ctx, intent.ScheduleID)
	if err != nil {
		return nil, nil, err
	}
	if schedule == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "schedule not found for intent")
	}
	return intent, schedule, nil
}

func (s *Service) raiseProcessingAlert(ctx context.Context, envelope Envelope, cause error) {
	if _, err := s.alerts.Raise(ctx, alerts.RaiseParams{
		Scope:    enums.AlertScopeSystem,
		Severity: enums.AlertSeverityWarning,
		Code:     alertCodeEventProcessingFailed,
		Message:  fmt.Sprintf("event %s/%s failed: %v", envelope.Provider, envelope.EventID, cause),
	}); err != nil {
		s.logg.Error(ctx, "raising event-processing alert failed", err)
	}
}
