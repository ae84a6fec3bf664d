package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumicrm/payments-backend/internal/inbox"
	"github.com/lumicrm/payments-backend/internal/schedules"
	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

type fakeCreator struct {
	created []schedules.ContractSignedPayload
	err     error
}

func (f *fakeCreator) CreateFromContract(_ context.Context, payload schedules.ContractSignedPayload) (*models.Schedule, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, payload)
	return &models.Schedule{ID: uuid.New()}, nil
}

type fakeProcessor struct {
	envelopes []inbox.Envelope
	status    enums.InboxStatus
	err       error
}

func (f *fakeProcessor) Process(_ context.Context, envelope inbox.Envelope) (enums.InboxStatus, error) {
	f.envelopes = append(f.envelopes, envelope)
	return f.status, f.err
}

type fakeClaimer struct {
	claimed  []string
	statuses map[uuid.UUID]enums.InboxStatus
	lose     bool
	err      error
}

func (f *fakeClaimer) Claim(_ context.Context, event *models.InboxEvent) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.lose {
		return false, nil
	}
	f.claimed = append(f.claimed, event.ProviderEventID)
	return true, nil
}

func (f *fakeClaimer) MarkStatus(_ context.Context, id uuid.UUID, status enums.InboxStatus, _ map[string]any) error {
	if f.statuses == nil {
		f.statuses = map[uuid.UUID]enums.InboxStatus{}
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeClaimer) lastStatus() enums.InboxStatus {
	for _, status := range f.statuses {
		return status
	}
	return ""
}

func newTestConsumer(creator *fakeCreator, processor *fakeProcessor, claims *fakeClaimer) *Consumer {
	return &Consumer{
		creator:   creator,
		processor: processor,
		claims:    claims,
		logg:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		now:       time.Now,
	}
}

func contractMessage(t *testing.T, eventID string) *pubsub.Message {
	t.Helper()
	body, err := json.Marshal(schedules.ContractSignedPayload{
		OrganisationID: uuid.New(),
		ContractID:     uuid.New(),
		ClientID:       uuid.New(),
		CompanyID:      uuid.New(),
		Amount:         decimal.NewFromFloat(49.90),
		Currency:       "EUR",
		Provider:       enums.PSPProviderSandbox,
		MandateRef:     "mandate-1",
	})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:   "msg-1",
		Data: body,
		Attributes: map[string]string{
			attrEventID:   eventID,
			attrEventType: "contract.signed",
		},
	}
}

func TestProcess_ContractSignedCreatesSchedule(t *testing.T) {
	creator := &fakeCreator{}
	claims := &fakeClaimer{}
	consumer := newTestConsumer(creator, &fakeProcessor{}, claims)

	result := consumer.process(context.Background(), contractMessage(t, "evt_1"))
	assert.True(t, result.ack)
	assert.False(t, result.nack)

	require.Len(t, creator.created, 1)
	assert.Equal(t, "EUR", creator.created[0].Currency)
	assert.Equal(t, []string{"evt_1"}, claims.claimed)
	assert.Equal(t, enums.InboxStatusProcessed, claims.lastStatus())
}

func TestProcess_DuplicateContractEventIsAcked(t *testing.T) {
	creator := &fakeCreator{}
	consumer := newTestConsumer(creator, &fakeProcessor{}, &fakeClaimer{lose: true})

	result := consumer.process(context.Background(), contractMessage(t, "evt_1"))
	assert.True(t, result.ack)
	assert.Empty(t, creator.created)
}

func TestProcess_ClaimInfraFailureIsNacked(t *testing.T) {
	consumer := newTestConsumer(&fakeCreator{}, &fakeProcessor{},
		&fakeClaimer{err: errors.New("connection refused")})

	result := consumer.process(context.Background(), contractMessage(t, "evt_1"))
	assert.True(t, result.nack)
}

func TestProcess_InvalidContractPayloadIsPoison(t *testing.T) {
	creator := &fakeCreator{err: pkgerrors.New(pkgerrors.CodeValidation, "bad payload")}
	claims := &fakeClaimer{}
	consumer := newTestConsumer(creator, &fakeProcessor{}, claims)

	result := consumer.process(context.Background(), contractMessage(t, "evt_1"))
	// Poison messages are acked, not requeued; the FAILED row feeds the
	// operator queue.
	assert.True(t, result.ack)
	assert.Equal(t, enums.InboxStatusFailed, claims.lastStatus())
}

func TestProcess_PaymentResultGoesThroughInbox(t *testing.T) {
	processor := &fakeProcessor{status: enums.InboxStatusProcessed}
	consumer := newTestConsumer(&fakeCreator{}, processor, &fakeClaimer{})

	msg := &pubsub.Message{
		ID:   "msg-2",
		Data: []byte(`{"intent_id":"` + uuid.NewString() + `"}`),
		Attributes: map[string]string{
			attrEventID:   "evt_2",
			attrEventType: "payment.received",
		},
	}
	result := consumer.process(context.Background(), msg)
	assert.True(t, result.ack)

	require.Len(t, processor.envelopes, 1)
	envelope := processor.envelopes[0]
	assert.Equal(t, internalProvider, envelope.Provider)
	assert.Equal(t, "evt_2", envelope.EventID)
	assert.True(t, envelope.Trusted)
}

func TestProcess_InboxInfraFailureIsNacked(t *testing.T) {
	processor := &fakeProcessor{status: "", err: errors.New("db down")}
	consumer := newTestConsumer(&fakeCreator{}, processor, &fakeClaimer{})

	msg := &pubsub.Message{
		ID:   "msg-3",
		Data: []byte(`{}`),
		Attributes: map[string]string{
			attrEventID:   "evt_3",
			attrEventType: "payment.rejected",
		},
	}
	result := consumer.process(context.Background(), msg)
	assert.True(t, result.nack)
}

func TestProcess_UnknownEventTypeIsAcked(t *testing.T) {
	processor := &fakeProcessor{}
	consumer := newTestConsumer(&fakeCreator{}, processor, &fakeClaimer{})

	msg := &pubsub.Message{
		ID:         "msg-4",
		Attributes: map[string]string{attrEventID: "evt_4", attrEventType: "invoice.created"},
	}
	result := consumer.process(context.Background(), msg)
	assert.True(t, result.ack)
	assert.Empty(t, processor.envelopes)
}
