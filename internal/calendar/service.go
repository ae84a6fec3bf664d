package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lumicrm/payments-backend/pkg/logger"
)

// ServiceParams groups dependencies for the calendar service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service exposes the side-effect-free calendar operations: planned date
// computation, configuration resolution and date eligibility.
type Service struct {
	repo     Repository
	resolver *Resolver
	holidays *HolidayService
	logg     *logger.Logger
}

// NewService builds a calendar service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	resolver, err := NewResolver(params.Repo)
	if err != nil {
		return nil, err
	}
	holidays, err := NewHolidayService(params.Repo)
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:     params.Repo,
		resolver: resolver,
		holidays: holidays,
		logg:     params.Logger,
	}, nil
}

// PlannedDate resolves the effective configuration for the query, snapshots
// the holiday zone around the reference date and computes the next debit
// date.
func (s *Service) PlannedDate(ctx context.Context, q ResolveQuery) (*PlannedDate, error) {
	cfg, err := s.resolver.Resolve(ctx, q)
	if err != nil {
		return nil, err
	}

	reference := q.At
	if reference.IsZero() {
		reference = time.Now().UTC()
	}

	// Window covers the cycle month plus the widest possible shift on
	// either side.
	from := truncateToDay(reference).AddDate(0, 0, -shiftSearchBound)
	to := truncateToDay(reference).AddDate(0, 2, shiftSearchBound)
	cal, err := s.holidays.Snapshot(ctx, cfg.HolidayZoneID, from, to)
	if err != nil {
		return nil, err
	}

	return CalculatePlannedDate(cfg, cal, reference)
}

// ResolveConfiguration returns the effective debit configuration without
// computing a date.
func (s *Service) ResolveConfiguration(ctx context.Context, q ResolveQuery) (*ResolvedConfiguration, error) {
	return s.resolver.Resolve(ctx, q)
}

// CheckDateEligibility reports whether the date is a business day in the
// zone.
func (s *Service) CheckDateEligibility(ctx context.Context, zoneID uuid.UUID, date time.Time) (bool, error) {
	return s.holidays.CheckEligibility(ctx, zoneID, date)
}
