package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/lumicrm/payments-backend/internal/inbox"
	"github.com/lumicrm/payments-backend/internal/schedules"
	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

// internalProvider namespaces domain events in the inbox, separate from PSP
// webhook providers.
const internalProvider = "internal"

const (
	attrEventID   = "event_id"
	attrEventType = "event_type"
)

type scheduleCreator interface {
	CreateFromContract(ctx context.Context, payload schedules.ContractSignedPayload) (*models.Schedule, error)
}

type eventProcessor interface {
	Process(ctx context.Context, envelope inbox.Envelope) (enums.InboxStatus, error)
}

type inboxClaimer interface {
	Claim(ctx context.Context, event *models.InboxEvent) (bool, error)
	MarkStatus(ctx context.Context, id uuid.UUID, status enums.InboxStatus, updates map[string]any) error
}

// Consumer processes domain events from the payments subscription:
// contract.signed creates schedules, payment results flow through the inbox.
type Consumer struct {
	subscription *pubsub.Subscriber
	creator      scheduleCreator
	processor    eventProcessor
	claims       inboxClaimer
	logg         *logger.Logger
	now          func() time.Time
}

// NewConsumer builds a consumer watching the provided subscription.
func NewConsumer(subscription *pubsub.Subscriber, creator scheduleCreator, processor eventProcessor, claims inboxClaimer, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("domain subscription is required")
	}
	if creator == nil {
		return nil, errors.New("schedule creator is required")
	}
	if processor == nil {
		return nil, errors.New("event processor is required")
	}
	if claims == nil {
		return nil, errors.New("inbox repository is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: subscription,
		creator:      creator,
		processor:    processor,
		claims:       claims,
		logg:         logg,
		now:          time.Now,
	}, nil
}

// Run processes messages until the context is cancelled or the subscription
// errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventID := msg.Attributes[attrEventID]
	eventType := msg.Attributes[attrEventType]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_id":   eventID,
		"event_type": eventType,
	})

	if eventID == "" || eventType == "" {
		c.logg.Warn(logCtx, "event missing id or type attributes")
		return processResult{ack: true}
	}

	parsed, err := enums.ParseDomainEventType(eventType)
	if err != nil {
		c.logg.Info(logCtx, "event type not handled by payments consumer")
		return processResult{ack: true}
	}

	switch parsed {
	case enums.DomainEventContractSigned:
		return c.handleContractSigned(logCtx, eventID, msg.Data)
	default:
		return c.handlePaymentResult(logCtx, eventID, eventType, msg.Data)
	}
}

// handlePaymentResult delegates to the inbox pipeline. Only pre-claim
// infrastructure failures are nacked: once the claim row exists, a redelivery
// would short-circuit as DUPLICATE, so apply failures land in the operator
// queue instead of being retried through the transport.
func (c *Consumer) handlePaymentResult(ctx context.Context, eventID, eventType string, data []byte) processResult {
	status, err := c.processor.Process(ctx, inbox.Envelope{
		Provider:  internalProvider,
		EventID:   eventID,
		EventType: eventType,
		Payload:   data,
		Trusted:   true,
	})
	if err != nil && status == "" {
		c.logg.Error(ctx, "inbox claim failed, requeueing event", err)
		return processResult{nack: true}
	}
	if err != nil {
		c.logg.Error(ctx, "event surfaced to operator queue", err)
	}
	return processResult{ack: true}
}

// handleContractSigned claims the event in the inbox and creates the
// schedule, keeping contract events under the same at-least-once dedup as
// payment results.
func (c *Consumer) handleContractSigned(ctx context.Context, eventID string, data []byte) processResult {
	record := &models.InboxEvent{
		ID:              uuid.New(),
		Provider:        internalProvider,
		ProviderEventID: eventID,
		EventType:       enums.DomainEventContractSigned.String(),
		RawPayload:      data,
		SignatureValid:  true,
		Status:          enums.InboxStatusVerified,
	}
	claimed, err := c.claims.Claim(ctx, record)
	if err != nil {
		c.logg.Error(ctx, "inbox claim failed, requeueing event", err)
		return processResult{nack: true}
	}
	if !claimed {
		c.logg.Info(ctx, "duplicate contract event absorbed")
		return processResult{ack: true}
	}

	var payload schedules.ContractSignedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.failEvent(ctx, record.ID, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed contract payload"))
		return processResult{ack: true}
	}

	schedule, err := c.creator.CreateFromContract(ctx, payload)
	if err != nil {
		c.failEvent(ctx, record.ID, err)
		return processResult{ack: true}
	}

	if err := c.claims.MarkStatus(ctx, record.ID, enums.InboxStatusProcessed, map[string]any{
		"processed_at": c.now().UTC(),
	}); err != nil {
		c.logg.Error(ctx, "marking contract event processed failed", err)
		return processResult{ack: true}
	}

	ctx = c.logg.WithScheduleID(ctx, schedule.ID.String())
	c.logg.Info(ctx, "schedule created from contract event")
	return processResult{ack: true}
}

func (c *Consumer) failEvent(ctx context.Context, recordID uuid.UUID, cause error) {
	c.logg.Error(ctx, "contract event failed", cause)
	if err := c.claims.MarkStatus(ctx, recordID, enums.InboxStatusFailed, map[string]any{
		"error": cause.Error(),
	}); err != nil {
		c.logg.Error(ctx, "marking contract event failed errored", err)
	}
}
