package emission

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
	"github.com/lumicrm/payments-backend/internal/psp"
	"github.com/lumicrm/payments-backend/internal/retry"
	"github.com/lumicrm/payments-backend/internal/schedules"
	"github.com/lumicrm/payments-backend/pkg/config"
	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

type scriptedExecutor struct {
	provider enums.PSPProvider
	result   *psp.ChargeResult
	err      error
	requests []psp.ChargeRequest
}

func (s *scriptedExecutor) Provider() enums.PSPProvider {
	return s.provider
}

func (s *scriptedExecutor) Charge(_ context.Context, req psp.ChargeRequest) (*psp.ChargeResult, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func setupEmissionTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Schedule{}, &models.PaymentIntent{}, &models.Alert{}))
	for _, table := range []string{"schedules", "payment_intents", "alerts"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

func newCoordinator(t *testing.T, db *gorm.DB, executor psp.ChargeExecutor) *Coordinator {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	sink, err := alerts.NewService(alerts.ServiceParams{Repo: alerts.NewRepository(db), Logger: logg})
	require.NoError(t, err)
	engine, err := retry.NewEngine(retry.EngineParams{
		Schedules: schedules.NewRepository(db),
		Alerts:    sink,
		Backoff:   retry.BackoffPolicy{Base: 4 * time.Hour, Cap: 72 * time.Hour},
		Logger:    logg,
	})
	require.NoError(t, err)

	coordinator, err := NewCoordinator(CoordinatorParams{
		Schedules: schedules.NewRepository(db),
		Intents:   NewIntentRepository(db),
		Executors: psp.NewRegistry(executor),
		Retry:     engine,
		Config: config.EmissionConfig{
			TickInterval:  time.Minute,
			BatchSize:     10,
			ChargeTimeout: 50 * time.Millisecond,
			ClaimLease:    10 * time.Minute,
		},
		Logger:   logg,
		WorkerID: "worker-1",
		Now:      func() time.Time { return time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return coordinator
}

func seedDueSchedule(t *testing.T, db *gorm.DB, mutate func(*models.Schedule)) *models.Schedule {
	t.Helper()
	schedule := &models.Schedule{
		ID:             uuid.New(),
		OrganisationID: uuid.New(),
		ContractID:     uuid.New(),
		ClientID:       uuid.New(),
		CompanyID:      uuid.New(),
		Amount:         decimal.NewFromFloat(49.90),
		Currency:       "EUR",
		DueDate:        time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC),
		Status:         enums.ScheduleStatusPlanned,
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

func storedIntent(t *testing.T, db *gorm.DB, scheduleID uuid.UUID) *models.PaymentIntent {
	t.Helper()
	var intent models.PaymentIntent
	require.NoError(t, db.Where("schedule_id = ?", scheduleID).First(&intent).Error)
	return &intent
}

func TestRunCycle_AcceptedChargeMovesScheduleToPending(t *testing.T) {
	db := setupEmissionTestDB(t)
	executor := &scriptedExecutor{
		provider: enums.PSPProviderSandbox,
		result:   &psp.ChargeResult{Outcome: psp.OutcomeAccepted, ProviderPaymentID: "pay_1"},
	}
	coordinator := newCoordinator(t, db, executor)
	schedule := seedDueSchedule(t, db, nil)

	stats, err := coordinator.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Claimed)
	assert.Equal(t, 1, stats.Accepted)

	stored, err := schedules.NewRepository(db).FindByID(context.Background(), schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ScheduleStatusPending, stored.Status)

	intent := storedIntent(t, db, schedule.ID)
	assert.Equal(t, enums.IntentStatusPending, intent.Status)
	require.NotNil(t, intent.ProviderPaymentID)
	assert.Equal(t, "pay_1", *intent.ProviderPaymentID)
	assert.Equal(t, IdempotencyKey(schedule.ID, schedule.DueDate, 0), intent.IdempotencyKey)

	require.Len(t, executor.requests, 1)
	assert.Equal(t, intent.IdempotencyKey, executor.requests[0].IdempotencyKey)
	assert.True(t, executor.requests[0].Amount.Equal(schedule.Amount))
}

func TestRunCycle_SynchronousRejectionFeedsRetryEngine(t *testing.T) {
	db := setupEmissionTestDB(t)
	executor := &scriptedExecutor{
		provider: enums.PSPProviderSandbox,
		result: &psp.ChargeResult{
			Outcome: psp.OutcomeRejected,
			Code:    enums.OutcomeCodeInsufficientFunds,
			Message: "balance too low",
		},
	}
	coordinator := newCoordinator(t, db, executor)
	schedule := seedDueSchedule(t, db, nil)

	stats, err := coordinator.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rejected)

	stored, err := schedules.NewRepository(db).FindByID(context.Background(), schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ScheduleStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.NextRetryAt)

	intent := storedIntent(t, db, schedule.ID)
	assert.Equal(t, enums.IntentStatusRejected, intent.Status)
	require.NotNil(t, intent.ErrorCode)
	assert.Equal(t, "insufficient_funds", *intent.ErrorCode)
}

func TestRunCycle_TimeoutHoldsAmbiguous(t *testing.T) {
	db := setupEmissionTestDB(t)
	executor := &scriptedExecutor{
		provider: enums.PSPProviderSandbox,
		err:      context.DeadlineExceeded,
	}
	coordinator := newCoordinator(t, db, executor)
	schedule := seedDueSchedule(t, db, nil)

	stats, err := coordinator.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Ambiguous)

	// The schedule waits at PENDING for a webhook; it is never FAILED on an
	// ambiguous outcome.
	stored, err := schedules.NewRepository(db).FindByID(context.Background(), schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ScheduleStatusPending, stored.Status)
	assert.Equal(t, 0, stored.RetryCount)

	intent := storedIntent(t, db, schedule.ID)
	assert.Equal(t, enums.IntentStatusAmbiguous, intent.Status)
}

func TestRunCycle_CrashRecoveryReusesPaidIntent(t *testing.T) {
	db := setupEmissionTestDB(t)
	executor := &scriptedExecutor{
		provider: enums.PSPProviderSandbox,
		result:   &psp.ChargeResult{Outcome: psp.OutcomeAccepted},
	}
	coordinator := newCoordinator(t, db, executor)
	schedule := seedDueSchedule(t, db, nil)

	require.NoError(t, db.Create(&models.PaymentIntent{
		ID:             uuid.New(),
		ScheduleID:     schedule.ID,
		CycleDate:      schedule.DueDate,
		IdempotencyKey: IdempotencyKey(schedule.ID, schedule.DueDate, 0),
		Provider:       schedule.Provider,
		Amount:         schedule.Amount,
		Currency:       schedule.Currency,
		Status:         enums.IntentStatusPaid,
	}).Error)

	_, err := coordinator.RunCycle(context.Background())
	require.NoError(t, err)

	stored, err := schedules.NewRepository(db).FindByID(context.Background(), schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ScheduleStatusPaid, stored.Status)
	// No second charge was submitted.
	assert.Empty(t, executor.requests)
}

func TestRunCycle_ReclaimsStrandedProcessingSchedule(t *testing.T) {
	db := setupEmissionTestDB(t)
	executor := &scriptedExecutor{
		provider: enums.PSPProviderSandbox,
		result:   &psp.ChargeResult{Outcome: psp.OutcomeAccepted},
	}
	coordinator := newCoordinator(t, db, executor)

	// A worker claimed this schedule, wrote the PAID intent, then died. The
	// claim lease expired an hour ago.
	schedule := seedDueSchedule(t, db, func(s *models.Schedule) {
		s.Status = enums.ScheduleStatusProcessing
	})
	require.NoError(t, db.Model(&models.Schedule{}).
		Where("id = ?", schedule.ID).
		UpdateColumn("updated_at", time.Date(2025, 9, 10, 10, 0, 0, 0, time.UTC)).Error)
	require.NoError(t, db.Create(&models.PaymentIntent{
		ID:             uuid.New(),
		ScheduleID:     schedule.ID,
		CycleDate:      schedule.DueDate,
		IdempotencyKey: IdempotencyKey(schedule.ID, schedule.DueDate, 0),
		Provider:       schedule.Provider,
		Amount:         schedule.Amount,
		Currency:       schedule.Currency,
		Status:         enums.IntentStatusPaid,
	}).Error)

	stats, err := coordinator.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Claimed)

	stored, err := schedules.NewRepository(db).FindByID(context.Background(), schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ScheduleStatusPaid, stored.Status)
	assert.Empty(t, executor.requests)
}

func TestRunCycle_NothingDueIsQuiet(t *testing.T) {
	db := setupEmissionTestDB(t)
	executor := &scriptedExecutor{provider: enums.PSPProviderSandbox}
	coordinator := newCoordinator(t, db, executor)

	seedDueSchedule(t, db, func(s *models.Schedule) {
		s.DueDate = time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	})

	stats, err := coordinator.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleStats{}, stats)
	assert.Empty(t, executor.requests)
}

func TestIdempotencyKey_Derivation(t *testing.T) {
	scheduleID := uuid.New()
	cycle := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, IdempotencyKey(scheduleID, cycle, 0), IdempotencyKey(scheduleID, cycle, 0))
	assert.NotEqual(t, IdempotencyKey(scheduleID, cycle, 0), IdempotencyKey(scheduleID, cycle, 1))
	assert.NotEqual(t, IdempotencyKey(scheduleID, cycle, 0), IdempotencyKey(uuid.New(), cycle, 0))
	// Only the calendar day of the cycle matters, not the clock time.
	assert.Equal(t,
		IdempotencyKey(scheduleID, cycle, 0),
		IdempotencyKey(scheduleID, cycle.Add(5*time.Hour), 0))
}
