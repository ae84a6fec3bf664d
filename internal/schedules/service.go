package schedules

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumicrm/payments-backend/internal/calendar"
	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

// DatePlanner computes the next debit date for a contract. Implemented by
// the calendar service.
type DatePlanner interface {
	PlannedDate(ctx context.Context, q calendar.ResolveQuery) (*calendar.PlannedDate, error)
}

// ServiceParams groups dependencies for the schedule service.
type ServiceParams struct {
	Repo    Repository
	Planner DatePlanner
	Logger  *logger.Logger
	Now     func() time.Time
}

// Service owns schedule lifecycle operations outside the emission loop:
// creation from contract events, cancellation, and recurring advancement.
type Service struct {
	repo     Repository
	planner  DatePlanner
	logg     *logger.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds a schedule service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Planner == nil {
		return nil, errors.New("planner is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:     params.Repo,
		planner:  params.Planner,
		logg:     params.Logger,
		validate: validator.New(),
		now:      now,
	}, nil
}

// ContractSignedPayload is the normalized body of a contract.signed event.
type ContractSignedPayload struct {
	OrganisationID uuid.UUID `json:"organisation_id" validate:"required"`
	ContractID     uuid.UUID `json:"contract_id" validate:"required"`
	ClientID       uuid.UUID `json:"client_id" validate:"required"`
	CompanyID      uuid.UUID `json:"company_id" validate:"required"`

	Amount   decimal.Decimal `json:"amount" validate:"required"`
	Currency string          `json:"currency" validate:"required,len=3"`

	IsRecurring   bool               `json:"is_recurring"`
	IntervalUnit  enums.IntervalUnit `json:"interval_unit"`
	IntervalCount int                `json:"interval_count"`

	Provider    enums.PSPProvider `json:"provider" validate:"required"`
	MandateRef  string            `json:"mandate_ref" validate:"required"`
	CustomerRef string            `json:"customer_ref"`

	MaxRetries int             `json:"max_retries"`
	SignedAt   time.Time       `json:"signed_at"`
	Metadata   json.RawMessage `json:"metadata"`
}

// CreateFromContract computes the first due date and persists a PLANNED
// schedule for the signed contract.
func (s *Service) CreateFromContract(ctx context.Context, payload ContractSignedPayload) (*models.Schedule, error) {
	if err := s.validate.Struct(payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract payload")
	}
	if !payload.Provider.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown psp provider").
			WithDetails(map[string]any{"provider": payload.Provider.String()})
	}
	if !payload.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	reference := payload.SignedAt
	if reference.IsZero() {
		reference = s.now()
	}

	planned, err := s.planner.PlannedDate(ctx, calendar.ResolveQuery{
		OrganisationID: payload.OrganisationID,
		ContractID:     payload.ContractID,
		ClientID:       payload.ClientID,
		CompanyID:      payload.CompanyID,
		At:             reference,
	})
	if err != nil {
		return nil, err
	}

	maxRetries := payload.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	intervalUnit := payload.IntervalUnit
	if intervalUnit == "" {
		intervalUnit = enums.IntervalUnitMonth
	}
	intervalCount := payload.IntervalCount
	if intervalCount <= 0 {
		intervalCount = 1
	}

	schedule := &models.Schedule{
		ID:             uuid.New(),
		OrganisationID: payload.OrganisationID,
		ContractID:     payload.ContractID,
		ClientID:       payload.ClientID,
		CompanyID:      payload.CompanyID,
		Amount:         payload.Amount,
		Currency:       payload.Currency,
		DueDate:        planned.Date,
		IsRecurring:    payload.IsRecurring,
		IntervalUnit:   intervalUnit,
		IntervalCount:  intervalCount,
		Status:         enums.ScheduleStatusPlanned,
		MaxRetries:     maxRetries,
		Provider:       payload.Provider,
		MandateRef:     payload.MandateRef,
		CustomerRef:    payload.CustomerRef,
		Metadata:       payload.Metadata,
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, err
	}

	ctx = s.logg.WithScheduleID(ctx, schedule.ID.String())
	s.logg.Info(ctx, "schedule created from contract")
	return schedule, nil
}

// Cancel cancels a schedule. PLANNED, PROCESSING and FAILED schedules are
// cancelled synchronously and soft-archived; a PENDING schedule only records
// intent, the in-flight attempt resolves first.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if schedule == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "schedule not found")
	}

	ctx = s.logg.WithScheduleID(ctx, id.String())

	switch schedule.Status {
	case enums.ScheduleStatusPlanned, enums.ScheduleStatusProcessing, enums.ScheduleStatusFailed:
		updated, err := s.repo.UpdateStatusIf(ctx, id,
			[]enums.ScheduleStatus{enums.ScheduleStatusPlanned, enums.ScheduleStatusProcessing, enums.ScheduleStatusFailed},
			enums.ScheduleStatusCancelled,
			map[string]any{"archived_at": s.now()},
		)
		if err != nil {
			return err
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "schedule changed state during cancellation")
		}
		s.logg.Info(ctx, "schedule cancelled")
		return nil
	case enums.ScheduleStatusPending:
		marked, err := s.repo.RequestCancel(ctx, id)
		if err != nil {
			return err
		}
		if !marked {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "schedule changed state during cancellation")
		}
		s.logg.Info(ctx, "schedule cancellation deferred until in-flight attempt resolves")
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "schedule is terminal").
			WithDetails(map[string]any{"status": schedule.Status.String()})
	}
}

// AdvanceAfterPaid creates the successor PLANNED schedule for the next
// billing cycle of a recurring schedule that just settled. A schedule whose
// cancellation was deferred settles without a successor. The PAID row is
// never mutated beyond its next_due_date audit column.
func (s *Service) AdvanceAfterPaid(ctx context.Context, paid *models.Schedule) (*models.Schedule, error) {
	if paid == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "schedule is required")
	}
	if !paid.IsRecurring {
		return nil, nil
	}
	if paid.CancelRequested {
		ctx = s.logg.WithScheduleID(ctx, paid.ID.String())
		s.logg.Info(ctx, "cancellation requested, settled cycle recorded without a successor")
		return nil, nil
	}

	reference := nextCycleReference(paid.DueDate, paid.IntervalUnit, paid.IntervalCount)
	planned, err := s.planner.PlannedDate(ctx, calendar.ResolveQuery{
		OrganisationID: paid.OrganisationID,
		ContractID:     paid.ContractID,
		ClientID:       paid.ClientID,
		CompanyID:      paid.CompanyID,
		At:             reference,
	})
	if err != nil {
		return nil, err
	}

	successor := &models.Schedule{
		ID:             uuid.New(),
		OrganisationID: paid.OrganisationID,
		ContractID:     paid.ContractID,
		ClientID:       paid.ClientID,
		CompanyID:      paid.CompanyID,
		InvoiceID:      paid.InvoiceID,
		Amount:         paid.Amount,
		Currency:       paid.Currency,
		DueDate:        planned.Date,
		IsRecurring:    true,
		IntervalUnit:   paid.IntervalUnit,
		IntervalCount:  paid.IntervalCount,
		Status:         enums.ScheduleStatusPlanned,
		MaxRetries:     paid.MaxRetries,
		Provider:       paid.Provider,
		MandateRef:     paid.MandateRef,
		CustomerRef:    paid.CustomerRef,
		Metadata:       paid.Metadata,
	}
	if err := s.repo.Create(ctx, successor); err != nil {
		return nil, err
	}
	if err := s.repo.SetNextDueDate(ctx, paid.ID, planned.Date); err != nil {
		return nil, err
	}

	ctx = s.logg.WithScheduleID(ctx, paid.ID.String())
	s.logg.Info(ctx, "recurring schedule advanced to next cycle")
	return successor, nil
}

// nextCycleReference places the reference just before the month of the
// advanced due date so the planner lands in that month rather than the one
// after.
func nextCycleReference(dueDate time.Time, unit enums.IntervalUnit, count int) time.Time {
	if count <= 0 {
		count = 1
	}
	var advanced time.Time
	switch unit {
	case enums.IntervalUnitWeek:
		advanced = dueDate.AddDate(0, 0, 7*count)
	case enums.IntervalUnitQuarter:
		advanced = dueDate.AddDate(0, 3*count, 0)
	case enums.IntervalUnitYear:
		advanced = dueDate.AddDate(count, 0, 0)
	default:
		advanced = dueDate.AddDate(0, count, 0)
	}
	if unit == enums.IntervalUnitWeek {
		return advanced.AddDate(0, 0, -1)
	}
	// Last day of the month preceding the advanced date.
	return advanced.AddDate(0, 0, -advanced.Day())
}
