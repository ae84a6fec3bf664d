package retry

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lumicrm/payments-backend/internal/alerts"
	"github.com/lumicrm/payments-backend/internal/schedules"
	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

func setupRetryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Schedule{}, &models.Alert{}))
	require.NoError(t, db.Exec("DELETE FROM schedules").Error)
	require.NoError(t, db.Exec("DELETE FROM alerts").Error)
	return db
}

func newEngine(t *testing.T, db *gorm.DB) *Engine {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	sink, err := alerts.NewService(alerts.ServiceParams{
		Repo:   alerts.NewRepository(db),
		Logger: logg,
	})
	require.NoError(t, err)

	engine, err := NewEngine(EngineParams{
		Schedules: schedules.NewRepository(db),
		Alerts:    sink,
		Backoff:   BackoffPolicy{Base: 4 * time.Hour, Cap: 72 * time.Hour, JitterFraction: 0.1},
		Logger:    logg,
		Now:       func() time.Time { return time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return engine
}

func seedProcessing(t *testing.T, db *gorm.DB, mutate func(*models.Schedule)) *models.Schedule {
	t.Helper()
	schedule := &models.Schedule{
		ID:             uuid.New(),
		OrganisationID: uuid.New(),
		ContractID:     uuid.New(),
		ClientID:       uuid.New(),
		CompanyID:      uuid.New(),
		Amount:         decimal.NewFromInt(100),
		Currency:       "EUR",
		DueDate:        time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC),
		Status:         enums.ScheduleStatusProcessing,
		MaxRetries:     3,
		Provider:       enums.PSPProviderSandbox,
		MandateRef:     "mandate-1",
	}
	if mutate != nil {
		mutate(schedule)
	}
	require.NoError(t, db.Create(schedule).Error)
	return schedule
}

func alertsForSchedule(t *testing.T, db *gorm.DB, scheduleID uuid.UUID) []models.Alert {
	t.Helper()
	var found []models.Alert
	require.NoError(t, db.Where("schedule_id = ?", scheduleID).Find(&found).Error)
	return found
}

func TestHandleFailure_RetryableSchedulesNextAttempt(t *testing.T) {
	db := setupRetryTestDB(t)
	engine := newEngine(t, db)
	ctx := context.Background()

	schedule := seedProcessing(t, db, nil)
	err := engine.HandleFailure(ctx, schedule, nil, enums.OutcomeCodeInsufficientFunds, "balance too low")
	require.NoError(t, err)

	stored, err := schedules.NewRepository(db).FindByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ScheduleStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.NextRetryAt)
	assert.True(t, stored.NextRetryAt.After(time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)))
	require.NotNil(t, stored.LastFailureReason)
	assert.Contains(t, *stored.LastFailureReason, "insufficient_funds")

	assert.Empty(t, alertsForSchedule(t, db, schedule.ID))
}

func TestHandleFailure_ExhaustionGoesUnpaidWithOneCriticalAlert(t *testing.T) {
	db := setupRetryTestDB(t)
	engine := newEngine(t, db)
	ctx := context.Background()
	repo := schedules.NewRepository(db)

	schedule := seedProcessing(t, db, nil)

	// Three failed attempts against maxRetries=3: two holds, then UNPAID.
	for attempt := 0; attempt < 3; attempt++ {
		current, err := repo.FindByID(ctx, schedule.ID)
		require.NoError(t, err)
		if current.Status == enums.ScheduleStatusFailed {
			moved, err := repo.UpdateStatusIf(ctx, schedule.ID,
				[]enums.ScheduleStatus{enums.ScheduleStatusFailed},
				enums.ScheduleStatusProcessing, nil)
			require.NoError(t, err)
			require.True(t, moved)
			current, err = repo.FindByID(ctx, schedule.ID)
			require.NoError(t, err)
		}
		require.NoError(t, engine.HandleFailure(ctx, current, nil, enums.OutcomeCodeProcessorError, "psp 500"))
	}

	stored, err := repo.FindByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ScheduleStatusUnpaid, stored.Status)
	assert.Equal(t, 3, stored.RetryCount)
	assert.Nil(t, stored.NextRetryAt)

	raised := alertsForSchedule(t, db, schedule.ID)
	require.Len(t, raised, 1)
	assert.Equal(t, enums.AlertSeverityCritical, raised[0].Severity)
	assert.Equal(t, enums.AlertScopePayment, raised[0].Scope)
	assert.Equal(t, "PAYMENT_RETRIES_EXHAUSTED", raised[0].Code)
}

func TestHandleFailure_ExhaustionAlertNotDuplicated(t *testing.T) {
	db := setupRetryTestDB(t)
	engine := newEngine(t, db)
	ctx := context.Background()

	schedule := seedProcessing(t, db, func(s *models.Schedule) {
		s.RetryCount = 2
	})

	require.NoError(t, engine.HandleFailure(ctx, schedule, nil, enums.OutcomeCodeBankTimeout, ""))
	// Redelivered outcome for the same schedule: the guarded update no-ops
	// and the once-per-schedule alert holds.
	require.NoError(t, engine.HandleFailure(ctx, schedule, nil, enums.OutcomeCodeBankTimeout, ""))

	raised := alertsForSchedule(t, db, schedule.ID)
	require.Len(t, raised, 1)
}

func TestHandleFailure_TerminalGoesUnpaidImmediately(t *testing.T) {
	db := setupRetryTestDB(t)
	engine := newEngine(t, db)
	ctx := context.Background()

	schedule := seedProcessing(t, db, nil)
	err := engine.HandleFailure(ctx, schedule, nil, enums.OutcomeCodeMandateCancelled, "mandate gone")
	require.NoError(t, err)

	stored, err := schedules.NewRepository(db).FindByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ScheduleStatusUnpaid, stored.Status)
	// Terminal failures never consume the retry budget.
	assert.Equal(t, 0, stored.RetryCount)

	raised := alertsForSchedule(t, db, schedule.ID)
	require.Len(t, raised, 1)
	assert.Equal(t, enums.AlertSeverityWarning, raised[0].Severity)
	assert.Equal(t, "PAYMENT_TERMINAL_FAILURE", raised[0].Code)
}

func TestHandleFailure_ValidationNeverRetries(t *testing.T) {
	db := setupRetryTestDB(t)
	engine := newEngine(t, db)
	ctx := context.Background()

	schedule := seedProcessing(t, db, nil)
	err := engine.HandleFailure(ctx, schedule, nil, enums.OutcomeCodeValidation, "amount malformed")
	require.NoError(t, err)

	stored, err := schedules.NewRepository(db).FindByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ScheduleStatusUnpaid, stored.Status)

	raised := alertsForSchedule(t, db, schedule.ID)
	require.Len(t, raised, 1)
	assert.Equal(t, enums.AlertSeverityWarning, raised[0].Severity)
	assert.Equal(t, "PAYMENT_VALIDATION_ERROR", raised[0].Code)
}

func TestHandleFailure_CancelRequestedResolvesToCancelled(t *testing.T) {
	db := setupRetryTestDB(t)
	engine := newEngine(t, db)
	ctx := context.Background()

	schedule := seedProcessing(t, db, func(s *models.Schedule) {
		s.Status = enums.ScheduleStatusPending
		s.CancelRequested = true
	})
	err := engine.HandleFailure(ctx, schedule, nil, enums.OutcomeCodeInsufficientFunds, "")
	require.NoError(t, err)

	stored, err := schedules.NewRepository(db).FindByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ScheduleStatusCancelled, stored.Status)
	assert.NotNil(t, stored.ArchivedAt)
	assert.Empty(t, alertsForSchedule(t, db, schedule.ID))
}

func TestHandleFailure_UnknownCodeTreatedAsTerminal(t *testing.T) {
	db := setupRetryTestDB(t)
	engine := newEngine(t, db)
	ctx := context.Background()

	schedule := seedProcessing(t, db, nil)
	err := engine.HandleFailure(ctx, schedule, nil, enums.OutcomeCode("weird_new_code"), "")
	require.NoError(t, err)

	stored, err := schedules.NewRepository(db).FindByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ScheduleStatusUnpaid, stored.Status)
}
