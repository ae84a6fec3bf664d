package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

// Sink is the outbound alert contract consumed by the retry engine and the
// event inbox.
type Sink interface {
	Raise(ctx context.Context, alert RaiseParams) (*models.Alert, error)
	RaiseOncePerSchedule(ctx context.Context, alert RaiseParams) (*models.Alert, error)
}

// RaiseParams describes one operator alert.
type RaiseParams struct {
	OrganisationID uuid.UUID
	Scope          enums.AlertScope
	Severity       enums.AlertSeverity
	Code           string
	Message        string
	ScheduleID     *uuid.UUID
	IntentID       *uuid.UUID
}

// ServiceParams groups dependencies for the alert service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
	Now    func() time.Time
}

// Service persists operator alerts and handles acknowledgement.
type Service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds an alert service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{repo: params.Repo, logg: params.Logger, now: now}, nil
}

// Raise persists a new alert unconditionally.
func (s *Service) Raise(ctx context.Context, params RaiseParams) (*models.Alert, error) {
	alert := &models.Alert{
		ID:             uuid.New(),
		OrganisationID: params.OrganisationID,
		Scope:          params.Scope,
		Severity:       params.Severity,
		Code:           params.Code,
		Message:        params.Message,
		ScheduleID:     params.ScheduleID,
		IntentID:       params.IntentID,
	}
	if err := s.repo.Create(ctx, alert); err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"alert_id": alert.ID.String(),
		"severity": alert.Severity.String(),
		"code":     alert.Code,
	})
	s.logg.Warn(ctx, "operator alert raised")
	return alert, nil
}

// RaiseOncePerSchedule raises the alert only if no alert with the same code
// exists for the schedule yet. Keeps retry exhaustion at exactly one
// CRITICAL alert per schedule.
func (s *Service) RaiseOncePerSchedule(ctx context.Context, params RaiseParams) (*models.Alert, error) {
	if params.ScheduleID == nil {
		return s.Raise(ctx, params)
	}
	exists, err := s.repo.ExistsForSchedule(ctx, *params.ScheduleID, params.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}
	return s.Raise(ctx, params)
}

// ListOpen returns unacknowledged alerts for the organisation.
func (s *Service) ListOpen(ctx context.Context, organisationID uuid.UUID, severity *enums.AlertSeverity, limit int) ([]models.Alert, error) {
	return s.repo.ListOpen(ctx, organisationID, severity, limit)
}

// Acknowledge stamps the alert with the acting user.
func (s *Service) Acknowledge(ctx context.Context, id, userID uuid.UUID) error {
	alert, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if alert == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "alert not found")
	}
	acked, err := s.repo.Acknowledge(ctx, id, userID, s.now())
	if err != nil {
		return err
	}
	if !acked {
		return pkgerrors.New(pkgerrors.CodeConflict, "alert already acknowledged")
	}
	return nil
}
