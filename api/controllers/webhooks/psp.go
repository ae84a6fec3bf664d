package webhooks

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lumicrm/payments-backend/api/responses"
	"github.com/lumicrm/payments-backend/internal/inbox"
	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

const (
	headerEventID   = "X-Event-Id"
	headerEventType = "X-Event-Type"
	headerSignature = "X-Signature"
)

// EventProcessor runs the inbox pipeline for one delivery.
type EventProcessor interface {
	Process(ctx context.Context, envelope inbox.Envelope) (enums.InboxStatus, error)
}

// PSPWebhook ingests asynchronous payment results from a provider. The
// inbox owns verification, dedup and application; this handler only maps
// the HTTP surface. Errors are surfaced so the provider retries, a retried
// delivery that was already claimed resolves as DUPLICATE.
func PSPWebhook(processor EventProcessor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if processor == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inbox unavailable"))
			return
		}

		provider := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
		if _, err := enums.ParsePSPProvider(provider); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown provider"))
			return
		}

		eventID := strings.TrimSpace(r.Header.Get(headerEventID))
		eventType := strings.TrimSpace(r.Header.Get(headerEventType))
		if eventID == "" || eventType == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id and type headers are required"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		status, err := processor.Process(ctx, inbox.Envelope{
			Provider:  provider,
			EventID:   eventID,
			EventType: eventType,
			Payload:   payload,
			Signature: strings.TrimSpace(r.Header.Get(headerSignature)),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if status == enums.InboxStatusDuplicate {
			responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}
