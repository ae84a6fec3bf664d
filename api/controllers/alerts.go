package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumicrm/payments-backend/api/middleware"
	"github.com/lumicrm/payments-backend/api/responses"
	"github.com/lumicrm/payments-backend/api/validators"
	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

// AlertService is the slice of the alert service the API consumes.
type AlertService interface {
	ListOpen(ctx context.Context, organisationID uuid.UUID, severity *enums.AlertSeverity, limit int) ([]models.Alert, error)
	Acknowledge(ctx context.Context, id, userID uuid.UUID) error
}

type alertResponse struct {
	ID         uuid.UUID  `json:"id"`
	Scope      string     `json:"scope"`
	Severity   string     `json:"severity"`
	Code       string     `json:"code"`
	Message    string     `json:"message"`
	ScheduleID *uuid.UUID `json:"schedule_id,omitempty"`
	IntentID   *uuid.UUID `json:"intent_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AlertList returns the open alerts for the caller's organisation, most
// severe first.
func AlertList(svc AlertService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "alert service unavailable"))
			return
		}

		orgID, err := uuid.Parse(middleware.OrganisationIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing organisation"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var severity *enums.AlertSeverity
		if raw := strings.TrimSpace(r.URL.Query().Get("severity")); raw != "" {
			parsed, err := enums.ParseAlertSeverity(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown severity"))
				return
			}
			severity = &parsed
		}

		alerts, err := svc.ListOpen(r.Context(), orgID, severity, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]alertResponse, 0, len(alerts))
		for _, alert := range alerts {
			items = append(items, alertResponse{
				ID:         alert.ID,
				Scope:      alert.Scope.String(),
				Severity:   alert.Severity.String(),
				Code:       alert.Code,
				Message:    alert.Message,
				ScheduleID: alert.ScheduleID,
				IntentID:   alert.IntentID,
				CreatedAt:  alert.CreatedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{"alerts": items})
	}
}

// AlertAcknowledge marks an alert as handled by the calling operator.
func AlertAcknowledge(svc AlertService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "alert service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "alertId"), "alertId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user"))
			return
		}

		if err := svc.Acknowledge(r.Context(), id, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
