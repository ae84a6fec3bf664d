package calendar

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
)

// fakeCalendar treats weekends plus the listed dates as non-business days.
type fakeCalendar struct {
	holidays map[string]struct{}
	closed   bool
}

func (f *fakeCalendar) IsBusinessDay(date time.Time) bool {
	if f.closed {
		return false
	}
	if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		return false
	}
	_, holiday := f.holidays[date.Format(dateLayout)]
	return !holiday
}

func newFakeCalendar(holidays ...string) *fakeCalendar {
	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		set[h] = struct{}{}
	}
	return &fakeCalendar{holidays: set}
}

func fixedDayConfig(day int, strategy enums.ShiftStrategy) *ResolvedConfiguration {
	return &ResolvedConfiguration{
		ConfigurationID: uuid.New(),
		Level:           enums.ConfigLevelSystem,
		Mode:            enums.DebitModeFixedDay,
		FixedDay:        &day,
		ShiftStrategy:   strategy,
	}
}

func date(value string) time.Time {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCalculatePlannedDate_FixedDayShiftsSundayToMonday(t *testing.T) {
	// 2025-10-05 is a Sunday; with the day already passed in September the
	// cycle rolls to October and shifts forward to Monday the 6th.
	cfg := fixedDayConfig(5, enums.ShiftStrategyNext)
	cal := newFakeCalendar()

	got, err := CalculatePlannedDate(cfg, cal, date("2025-09-15"))
	require.NoError(t, err)
	assert.Equal(t, date("2025-10-06"), got.Date)
	assert.Equal(t, cfg.ConfigurationID, got.ConfigurationID)
	assert.Equal(t, enums.ConfigLevelSystem, got.Level)
}

func TestCalculatePlannedDate_FixedDayUsesCurrentMonthWhenStillAhead(t *testing.T) {
	cfg := fixedDayConfig(15, enums.ShiftStrategyNext)
	cal := newFakeCalendar()

	// 2025-09-15 is a Monday.
	got, err := CalculatePlannedDate(cfg, cal, date("2025-09-03"))
	require.NoError(t, err)
	assert.Equal(t, date("2025-09-15"), got.Date)
}

func TestCalculatePlannedDate_FixedDayClampsToMonthLength(t *testing.T) {
	cfg := fixedDayConfig(31, enums.ShiftStrategyNext)
	cal := newFakeCalendar()

	// February 2025 has 28 days; the 28th is a Friday.
	got, err := CalculatePlannedDate(cfg, cal, date("2025-02-01"))
	require.NoError(t, err)
	assert.Equal(t, date("2025-02-28"), got.Date)
}

func TestCalculatePlannedDate_LotBatchMapsToFixedDays(t *testing.T) {
	tests := []struct {
		batch enums.DebitBatch
		want  string
	}{
		{enums.DebitBatchL1, "2025-10-01"},
		{enums.DebitBatchL2, "2025-10-08"},
		{enums.DebitBatchL3, "2025-10-15"},
		{enums.DebitBatchL4, "2025-10-22"},
	}
	for _, tt := range tests {
		batch := tt.batch
		cfg := &ResolvedConfiguration{
			ConfigurationID: uuid.New(),
			Level:           enums.ConfigLevelCompany,
			Mode:            enums.DebitModeLotBatch,
			Batch:           &batch,
			ShiftStrategy:   enums.ShiftStrategyNext,
		}
		got, err := CalculatePlannedDate(cfg, newFakeCalendar(), date("2025-09-25"))
		require.NoError(t, err)
		assert.Equal(t, date(tt.want), got.Date, "batch %s", batch)
	}
}

func TestCalculatePlannedDate_PreviousStrategyRetreats(t *testing.T) {
	cfg := fixedDayConfig(5, enums.ShiftStrategyPrevious)
	cal := newFakeCalendar()

	// 2025-10-05 is a Sunday; previous business day is Friday the 3rd.
	got, err := CalculatePlannedDate(cfg, cal, date("2025-09-15"))
	require.NoError(t, err)
	assert.Equal(t, date("2025-10-03"), got.Date)
}

func TestCalculatePlannedDate_NearestBreaksTiesTowardNext(t *testing.T) {
	// 2025-10-15 is a Wednesday declared a holiday; Tuesday and Thursday
	// are both one day away, the tie goes forward.
	cfg := fixedDayConfig(15, enums.ShiftStrategyNearest)
	cal := newFakeCalendar("2025-10-15")

	got, err := CalculatePlannedDate(cfg, cal, date("2025-09-20"))
	require.NoError(t, err)
	assert.Equal(t, date("2025-10-16"), got.Date)
}

func TestCalculatePlannedDate_NearestPicksCloserSide(t *testing.T) {
	// 2025-10-04 is a Saturday: Friday is one day back, Monday two ahead.
	cfg := fixedDayConfig(4, enums.ShiftStrategyNearest)
	cal := newFakeCalendar()

	got, err := CalculatePlannedDate(cfg, cal, date("2025-09-20"))
	require.NoError(t, err)
	assert.Equal(t, date("2025-10-03"), got.Date)
}

func TestCalculatePlannedDate_IsDeterministic(t *testing.T) {
	cfg := fixedDayConfig(5, enums.ShiftStrategyNearest)
	cal := newFakeCalendar("2025-10-06")

	first, err := CalculatePlannedDate(cfg, cal, date("2025-09-15"))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := CalculatePlannedDate(cfg, cal, date("2025-09-15"))
		require.NoError(t, err)
		assert.Equal(t, first.Date, again.Date)
	}
}

func TestCalculatePlannedDate_FailsWhenNoBusinessDayInWindow(t *testing.T) {
	cfg := fixedDayConfig(5, enums.ShiftStrategyNext)
	cal := &fakeCalendar{closed: true}

	_, err := CalculatePlannedDate(cfg, cal, date("2025-09-15"))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInternal, typed.Code())
}

func TestCalculatePlannedDate_RejectsInvalidConfig(t *testing.T) {
	cal := newFakeCalendar()

	_, err := CalculatePlannedDate(nil, cal, date("2025-09-15"))
	require.Error(t, err)

	bad := fixedDayConfig(0, enums.ShiftStrategyNext)
	_, err = CalculatePlannedDate(bad, cal, date("2025-09-15"))
	require.Error(t, err)

	missingBatch := &ResolvedConfiguration{
		ConfigurationID: uuid.New(),
		Mode:            enums.DebitModeLotBatch,
		ShiftStrategy:   enums.ShiftStrategyNext,
	}
	_, err = CalculatePlannedDate(missingBatch, cal, date("2025-09-15"))
	require.Error(t, err)
}
