package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lumicrm/payments-backend/api/responses"
	"github.com/lumicrm/payments-backend/api/validators"
	"github.com/lumicrm/payments-backend/internal/calendar"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

// CalendarService is the slice of the calendar service the API consumes.
type CalendarService interface {
	PlannedDate(ctx context.Context, q calendar.ResolveQuery) (*calendar.PlannedDate, error)
	ResolveConfiguration(ctx context.Context, q calendar.ResolveQuery) (*calendar.ResolvedConfiguration, error)
	CheckDateEligibility(ctx context.Context, zoneID uuid.UUID, date time.Time) (bool, error)
}

type calendarPreviewRequest struct {
	OrganisationID uuid.UUID `json:"organisation_id" validate:"required"`
	ContractID     uuid.UUID `json:"contract_id"`
	ClientID       uuid.UUID `json:"client_id"`
	CompanyID      uuid.UUID `json:"company_id"`
	ReferenceDate  *string   `json:"reference_date,omitempty"`
}

type calendarPreviewResponse struct {
	Date            string    `json:"date"`
	ConfigurationID uuid.UUID `json:"configuration_id"`
	Level           string    `json:"level"`
}

// CalendarPreview computes the next debit date for a contract without
// persisting anything.
func CalendarPreview(svc CalendarService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "calendar service unavailable"))
			return
		}

		var payload calendarPreviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		at := time.Now().UTC()
		if payload.ReferenceDate != nil {
			parsed, err := time.Parse("2006-01-02", *payload.ReferenceDate)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "reference_date must be formatted YYYY-MM-DD"))
				return
			}
			at = parsed
		}

		planned, err := svc.PlannedDate(r.Context(), calendar.ResolveQuery{
			OrganisationID: payload.OrganisationID,
			ContractID:     payload.ContractID,
			ClientID:       payload.ClientID,
			CompanyID:      payload.CompanyID,
			At:             at,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, calendarPreviewResponse{
			Date:            planned.Date.Format("2006-01-02"),
			ConfigurationID: planned.ConfigurationID,
			Level:           planned.Level.String(),
		})
	}
}

type calendarConfigurationResponse struct {
	ConfigurationID uuid.UUID `json:"configuration_id"`
	Level           string    `json:"level"`
	Mode            string    `json:"mode"`
	FixedDay        *int      `json:"fixed_day,omitempty"`
	Batch           *string   `json:"batch,omitempty"`
	ShiftStrategy   string    `json:"shift_strategy"`
	HolidayZoneID   uuid.UUID `json:"holiday_zone_id"`
}

// CalendarConfiguration exposes the resolved cascade level for audit.
func CalendarConfiguration(svc CalendarService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "calendar service unavailable"))
			return
		}

		var payload calendarPreviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		at := time.Now().UTC()
		if payload.ReferenceDate != nil {
			parsed, err := time.Parse("2006-01-02", *payload.ReferenceDate)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "reference_date must be formatted YYYY-MM-DD"))
				return
			}
			at = parsed
		}

		cfg, err := svc.ResolveConfiguration(r.Context(), calendar.ResolveQuery{
			OrganisationID: payload.OrganisationID,
			ContractID:     payload.ContractID,
			ClientID:       payload.ClientID,
			CompanyID:      payload.CompanyID,
			At:             at,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := calendarConfigurationResponse{
			ConfigurationID: cfg.ConfigurationID,
			Level:           cfg.Level.String(),
			Mode:            cfg.Mode.String(),
			FixedDay:        cfg.FixedDay,
			ShiftStrategy:   cfg.ShiftStrategy.String(),
			HolidayZoneID:   cfg.HolidayZoneID,
		}
		if cfg.Batch != nil {
			batch := cfg.Batch.String()
			resp.Batch = &batch
		}
		responses.WriteSuccess(w, resp)
	}
}

// CalendarEligibility reports whether a date is a business day in a zone.
func CalendarEligibility(svc CalendarService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "calendar service unavailable"))
			return
		}

		zoneID, err := validators.ParseQueryUUID(r, "zone_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		date, err := validators.ParseQueryDate(r, "date", time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eligible, err := svc.CheckDateEligibility(r.Context(), zoneID, date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"zone_id":  zoneID,
			"date":     date.Format("2006-01-02"),
			"eligible": eligible,
		})
	}
}
