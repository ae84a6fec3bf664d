package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
)

const dateLayout = "2006-01-02"

// BusinessCalendar answers whether a date is a business day. Implemented by
// Calendar snapshots in production and by fakes in tests.
type BusinessCalendar interface {
	IsBusinessDay(date time.Time) bool
}

// Calendar is an immutable snapshot of one holiday zone over a date window.
// Safe for concurrent use.
type Calendar struct {
	zoneID    uuid.UUID
	from      time.Time
	to        time.Time
	dates     map[string]struct{}
	recurring map[[2]int]struct{}
}

// IsBusinessDay reports whether the date is neither a weekend nor a holiday
// of the snapshot's zone.
func (c *Calendar) IsBusinessDay(date time.Time) bool {
	if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		return false
	}
	if _, ok := c.dates[date.Format(dateLayout)]; ok {
		return false
	}
	if _, ok := c.recurring[[2]int{int(date.Month()), date.Day()}]; ok {
		return false
	}
	return true
}

// ZoneID returns the zone the snapshot was built from.
func (c *Calendar) ZoneID() uuid.UUID {
	return c.zoneID
}

// HolidayService loads holiday zones into Calendar snapshots.
type HolidayService struct {
	repo Repository
}

// NewHolidayService builds a holiday service.
func NewHolidayService(repo Repository) (*HolidayService, error) {
	if repo == nil {
		return nil, errors.New("repo is required")
	}
	return &HolidayService{repo: repo}, nil
}

// Snapshot loads all holidays of the zone in [from, to] into an immutable
// calendar.
func (s *HolidayService) Snapshot(ctx context.Context, zoneID uuid.UUID, from, to time.Time) (*Calendar, error) {
	zone, err := s.repo.FindZoneByID(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	if zone == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "holiday zone not found").
			WithDetails(map[string]any{"zone_id": zoneID})
	}

	holidays, err := s.repo.ListHolidays(ctx, zoneID, from, to)
	if err != nil {
		return nil, err
	}

	cal := &Calendar{
		zoneID:    zoneID,
		from:      from,
		to:        to,
		dates:     make(map[string]struct{}, len(holidays)),
		recurring: make(map[[2]int]struct{}),
	}
	for _, h := range holidays {
		switch {
		case h.Date != nil:
			cal.dates[h.Date.Format(dateLayout)] = struct{}{}
		case h.RecurringMonth != nil && h.RecurringDay != nil:
			cal.recurring[[2]int{*h.RecurringMonth, *h.RecurringDay}] = struct{}{}
		}
	}
	return cal, nil
}

// CheckEligibility reports whether the date is a business day in the zone.
func (s *HolidayService) CheckEligibility(ctx context.Context, zoneID uuid.UUID, date time.Time) (bool, error) {
	cal, err := s.Snapshot(ctx, zoneID, date.AddDate(0, 0, -1), date.AddDate(0, 0, 1))
	if err != nil {
		return false, err
	}
	return cal.IsBusinessDay(date), nil
}
