package calendar

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
)

// shiftSearchBound caps how far a shift strategy walks away from the target
// date before giving up. A window this wide only runs out on pathological
// holiday data.
const shiftSearchBound = 30

// PlannedDate is the output of one date computation: the shifted date plus
// the configuration that produced it, for audit.
type PlannedDate struct {
	Date            time.Time
	ConfigurationID uuid.UUID
	Level           enums.ConfigLevel
}

// CalculatePlannedDate computes the next debit date strictly after
// referenceDate. Pure function of its inputs: no side effects, safe to call
// repeatedly and concurrently.
//
// FIXED_DAY targets min(fixedDay, lastDayOfMonth); LOT_BATCH targets the
// batch's fixed calendar day. A target on a weekend or holiday is moved by
// the configured shift strategy.
func CalculatePlannedDate(cfg *ResolvedConfiguration, cal BusinessCalendar, referenceDate time.Time) (*PlannedDate, error) {
	if cfg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolved configuration is required")
	}

	day, err := targetDay(cfg)
	if err != nil {
		return nil, err
	}

	reference := truncateToDay(referenceDate)
	target := dateWithClampedDay(reference.Year(), reference.Month(), day)
	if !target.After(reference) {
		next := reference.AddDate(0, 1, 0)
		target = dateWithClampedDay(next.Year(), next.Month(), day)
	}

	shifted, err := shift(target, cfg.ShiftStrategy, cal)
	if err != nil {
		return nil, err
	}

	return &PlannedDate{
		Date:            shifted,
		ConfigurationID: cfg.ConfigurationID,
		Level:           cfg.Level,
	}, nil
}

func targetDay(cfg *ResolvedConfiguration) (int, error) {
	switch cfg.Mode {
	case enums.DebitModeFixedDay:
		if cfg.FixedDay == nil || *cfg.FixedDay < 1 || *cfg.FixedDay > 31 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "fixed day must be between 1 and 31")
		}
		return *cfg.FixedDay, nil
	case enums.DebitModeLotBatch:
		if cfg.Batch == nil {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "batch is required for lot batch mode")
		}
		day, err := cfg.Batch.Day()
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid batch")
		}
		return day, nil
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown debit mode")
	}
}

func shift(target time.Time, strategy enums.ShiftStrategy, cal BusinessCalendar) (time.Time, error) {
	if cal.IsBusinessDay(target) {
		return target, nil
	}

	switch strategy {
	case enums.ShiftStrategyNext:
		return walk(target, 1, cal)
	case enums.ShiftStrategyPrevious:
		return walk(target, -1, cal)
	case enums.ShiftStrategyNearest:
		// Ties break toward the next business day.
		for distance := 1; distance <= shiftSearchBound; distance++ {
			if next := target.AddDate(0, 0, distance); cal.IsBusinessDay(next) {
				return next, nil
			}
			if prev := target.AddDate(0, 0, -distance); cal.IsBusinessDay(prev) {
				return prev, nil
			}
		}
		return time.Time{}, noBusinessDayErr(target)
	default:
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown shift strategy")
	}
}

func walk(target time.Time, step int, cal BusinessCalendar) (time.Time, error) {
	candidate := target
	for i := 0; i < shiftSearchBound; i++ {
		candidate = candidate.AddDate(0, 0, step)
		if cal.IsBusinessDay(candidate) {
			return candidate, nil
		}
	}
	return time.Time{}, noBusinessDayErr(target)
}

func noBusinessDayErr(target time.Time) error {
	return pkgerrors.New(pkgerrors.CodeInternal, "no business day found within search window").
		WithDetails(map[string]any{"target": target.Format(dateLayout)})
}

func dateWithClampedDay(year int, month time.Month, day int) time.Time {
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func truncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
