package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/lumicrm/payments-backend/internal/inbox"
	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

type stubProcessor struct {
	envelopes []inbox.Envelope
	status    enums.InboxStatus
	err       error
}

func (s *stubProcessor) Process(_ context.Context, envelope inbox.Envelope) (enums.InboxStatus, error) {
	s.envelopes = append(s.envelopes, envelope)
	return s.status, s.err
}

func newWebhookRouter(processor *stubProcessor) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/webhooks/psp/{provider}", PSPWebhook(processor, logger.New(logger.Options{ServiceName: "test"})))
	return r
}

func postWebhook(router http.Handler, provider, eventID, eventType, signature string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/psp/"+provider, bytes.NewReader(body))
	if eventID != "" {
		req.Header.Set(headerEventID, eventID)
	}
	if eventType != "" {
		req.Header.Set(headerEventType, eventType)
	}
	if signature != "" {
		req.Header.Set(headerSignature, signature)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestPSPWebhookProcessesDelivery(t *testing.T) {
	processor := &stubProcessor{status: enums.InboxStatusProcessed}
	router := newWebhookRouter(processor)

	resp := postWebhook(router, "stripe", "evt_1", "payment.received", "sig", []byte(`{"provider_payment_id":"pay_1"}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(processor.envelopes) != 1 {
		t.Fatalf("expected one envelope, got %d", len(processor.envelopes))
	}
	envelope := processor.envelopes[0]
	if envelope.Provider != "stripe" || envelope.EventID != "evt_1" || envelope.Signature != "sig" {
		t.Fatalf("envelope not populated from request: %+v", envelope)
	}
	if envelope.Trusted {
		t.Fatal("external deliveries must not be trusted")
	}
}

func TestPSPWebhookDuplicateIsAcknowledged(t *testing.T) {
	processor := &stubProcessor{status: enums.InboxStatusDuplicate}
	router := newWebhookRouter(processor)

	resp := postWebhook(router, "stripe", "evt_1", "payment.received", "sig", []byte(`{}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for duplicate, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("duplicate")) {
		t.Fatalf("expected duplicate status in body, got %s", resp.Body.String())
	}
}

func TestPSPWebhookInvalidSignatureIs401(t *testing.T) {
	processor := &stubProcessor{
		status: enums.InboxStatusRejected,
		err:    pkgerrors.New(pkgerrors.CodeSignatureInvalid, "signature mismatch"),
	}
	router := newWebhookRouter(processor)

	resp := postWebhook(router, "stripe", "evt_1", "payment.received", "bad", []byte(`{}`))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestPSPWebhookUnknownProviderIs400(t *testing.T) {
	processor := &stubProcessor{}
	router := newWebhookRouter(processor)

	resp := postWebhook(router, "paypal", "evt_1", "payment.received", "sig", []byte(`{}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if len(processor.envelopes) != 0 {
		t.Fatal("inbox must not be reached for unknown providers")
	}
}

func TestPSPWebhookMissingHeadersIs400(t *testing.T) {
	router := newWebhookRouter(&stubProcessor{})

	resp := postWebhook(router, "stripe", "", "", "", []byte(`{}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
