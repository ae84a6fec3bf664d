package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumicrm/payments-backend/api/responses"
	"github.com/lumicrm/payments-backend/api/validators"
	"github.com/lumicrm/payments-backend/internal/schedules"
	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

// ScheduleService is the slice of the schedule service the API consumes.
type ScheduleService interface {
	CreateFromContract(ctx context.Context, payload schedules.ContractSignedPayload) (*models.Schedule, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// ScheduleReader serves read-only schedule lookups.
type ScheduleReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error)
}

type scheduleCreateRequest struct {
	OrganisationID uuid.UUID `json:"organisation_id" validate:"required"`
	ContractID     uuid.UUID `json:"contract_id" validate:"required"`
	ClientID       uuid.UUID `json:"client_id" validate:"required"`
	CompanyID      uuid.UUID `json:"company_id" validate:"required"`

	Amount   decimal.Decimal `json:"amount" validate:"required"`
	Currency string          `json:"currency" validate:"required,len=3"`

	IsRecurring   bool   `json:"is_recurring"`
	IntervalUnit  string `json:"interval_unit,omitempty"`
	IntervalCount int    `json:"interval_count,omitempty"`

	Provider    string `json:"provider" validate:"required"`
	MandateRef  string `json:"mandate_ref" validate:"required"`
	CustomerRef string `json:"customer_ref,omitempty"`

	MaxRetries int             `json:"max_retries,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

type scheduleResponse struct {
	ID             uuid.UUID       `json:"id"`
	OrganisationID uuid.UUID       `json:"organisation_id"`
	ContractID     uuid.UUID       `json:"contract_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`

	DueDate     string  `json:"due_date"`
	NextDueDate *string `json:"next_due_date,omitempty"`
	IsRecurring bool    `json:"is_recurring"`

	Status            string     `json:"status"`
	RetryCount        int        `json:"retry_count"`
	MaxRetries        int        `json:"max_retries"`
	NextRetryAt       *time.Time `json:"next_retry_at,omitempty"`
	LastFailureReason *string    `json:"last_failure_reason,omitempty"`

	Provider        string     `json:"provider"`
	CancelRequested bool       `json:"cancel_requested"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func newScheduleResponse(schedule *models.Schedule) scheduleResponse {
	resp := scheduleResponse{
		ID:                schedule.ID,
		OrganisationID:    schedule.OrganisationID,
		ContractID:        schedule.ContractID,
		Amount:            schedule.Amount,
		Currency:          schedule.Currency,
		DueDate:           schedule.DueDate.Format("2006-01-02"),
		IsRecurring:       schedule.IsRecurring,
		Status:            schedule.Status.String(),
		RetryCount:        schedule.RetryCount,
		MaxRetries:        schedule.MaxRetries,
		NextRetryAt:       schedule.NextRetryAt,
		LastFailureReason: schedule.LastFailureReason,
		Provider:          schedule.Provider.String(),
		CancelRequested:   schedule.CancelRequested,
		ArchivedAt:        schedule.ArchivedAt,
		CreatedAt:         schedule.CreatedAt,
	}
	if schedule.NextDueDate != nil {
		next := schedule.NextDueDate.Format("2006-01-02")
		resp.NextDueDate = &next
	}
	return resp
}

// ScheduleCreate plans a schedule directly, outside the contract event
// flow. Backfills and manual corrections come through here.
func ScheduleCreate(svc ScheduleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "schedule service unavailable"))
			return
		}

		var payload scheduleCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		provider, err := enums.ParsePSPProvider(payload.Provider)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown provider"))
			return
		}

		contractPayload := schedules.ContractSignedPayload{
			OrganisationID: payload.OrganisationID,
			ContractID:     payload.ContractID,
			ClientID:       payload.ClientID,
			CompanyID:      payload.CompanyID,
			Amount:         payload.Amount,
			Currency:       payload.Currency,
			IsRecurring:    payload.IsRecurring,
			IntervalCount:  payload.IntervalCount,
			Provider:       provider,
			MandateRef:     payload.MandateRef,
			CustomerRef:    payload.CustomerRef,
			MaxRetries:     payload.MaxRetries,
			Metadata:       payload.Metadata,
		}
		if payload.IntervalUnit != "" {
			unit, err := enums.ParseIntervalUnit(payload.IntervalUnit)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown interval unit"))
				return
			}
			contractPayload.IntervalUnit = unit
		}

		schedule, err := svc.CreateFromContract(r.Context(), contractPayload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newScheduleResponse(schedule))
	}
}

// ScheduleFetch returns one schedule by id.
func ScheduleFetch(reader ScheduleReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "schedule repository unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "scheduleId"), "scheduleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		schedule, err := reader.FindByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if schedule == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "schedule not found"))
			return
		}

		responses.WriteSuccess(w, newScheduleResponse(schedule))
	}
}

// ScheduleCancel cancels a schedule, or records cancellation intent when an
// attempt is in flight.
func ScheduleCancel(svc ScheduleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "schedule service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "scheduleId"), "scheduleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
