package emission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/lumicrm/payments-backend/internal/psp"
	"github.com/lumicrm/payments-backend/internal/retry"
	"github.com/lumicrm/payments-backend/internal/schedules"
	"github.com/lumicrm/payments-backend/pkg/config"
	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
	"github.com/lumicrm/payments-backend/pkg/logger"
	"github.com/lumicrm/payments-backend/pkg/metrics"
)

// CoordinatorParams groups dependencies for the emission coordinator.
type CoordinatorParams struct {
	Schedules schedules.Repository
	Intents   IntentRepository
	Executors *psp.Registry
	Retry     *retry.Engine
	Config    config.EmissionConfig
	Metrics   *metrics.EmissionMetrics
	Logger    *logger.Logger
	WorkerID  string
	Now       func() time.Time
}

// Coordinator drives due schedules through charge submission. Multiple
// coordinators may run concurrently against the same database; correctness
// rests on the claim update in the schedule repository, not on any lock.
type Coordinator struct {
	schedules schedules.Repository
	intents   IntentRepository
	executors *psp.Registry
	retry     *retry.Engine
	cfg       config.EmissionConfig
	metrics   *metrics.EmissionMetrics
	logg      *logger.Logger
	workerID  string
	now       func() time.Time
}

// CycleStats summarizes one coordinator tick.
type CycleStats struct {
	Listed    int
	Claimed   int
	Lost      int
	Accepted  int
	Rejected  int
	Ambiguous int
}

// NewCoordinator builds an emission coordinator.
func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Schedules == nil {
		return nil, errors.New("schedules repo is required")
	}
	if params.Intents == nil {
		return nil, errors.New("intents repo is required")
	}
	if params.Executors == nil {
		return nil, errors.New("executor registry is required")
	}
	if params.Retry == nil {
		return nil, errors.New("retry engine is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	workerID := params.WorkerID
	if workerID == "" {
		workerID = uuid.NewString()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	cfg := params.Config
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ChargeTimeout <= 0 {
		cfg.ChargeTimeout = 30 * time.Second
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 10 * time.Minute
	}
	return &Coordinator{
		schedules: params.Schedules,
		intents:   params.Intents,
		executors: params.Executors,
		retry:     params.Retry,
		cfg:       cfg,
		metrics:   params.Metrics,
		logg:      params.Logger,
		workerID:  workerID,
		now:       now,
	}, nil
}

// Run ticks until the context is cancelled. Cycle errors are logged and do
// not stop the loop.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx = c.logg.WithField(ctx, "worker_id", c.workerID)
	c.logg.Info(ctx, "emission coordinator started")

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if _, err := c.RunCycle(ctx); err != nil {
			c.logg.Error(ctx, "emission cycle finished with errors", err)
		}
		select {
		case <-ctx.Done():
			c.logg.Info(ctx, "emission coordinator stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle processes one batch of due schedules and returns per-schedule
// errors combined.
func (c *Coordinator) RunCycle(ctx context.Context) (CycleStats, error) {
	started := c.now()
	stats := CycleStats{}

	due, err := c.schedules.ListDue(ctx, started, c.cfg.ClaimLease, c.cfg.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Listed = len(due)

	var cycleErr error
	for i := range due {
		schedule := due[i]
		if err := c.processSchedule(ctx, &schedule, &stats); err != nil {
			cycleErr = multierr.Append(cycleErr, fmt.Errorf("schedule %s: %w", schedule.ID, err))
		}
		if ctx.Err() != nil {
			break
		}
	}

	c.metrics.ObserveCycle(c.workerID, c.now().Sub(started))
	if stats.Listed > 0 {
		fields := map[string]any{
			"listed":    stats.Listed,
			"claimed":   stats.Claimed,
			"lost":      stats.Lost,
			"accepted":  stats.Accepted,
			"rejected":  stats.Rejected,
			"ambiguous": stats.Ambiguous,
		}
		c.logg.Info(c.logg.WithFields(ctx, fields), "emission cycle finished")
	}
	return stats, cycleErr
}

func (c *Coordinator) processSchedule(ctx context.Context, schedule *models.Schedule, stats *CycleStats) error {
	ctx = c.logg.WithScheduleID(ctx, schedule.ID.String())
	now := c.now()

	claimed, err := c.schedules.Claim(ctx, schedule.ID, now, c.cfg.ClaimLease)
	if err != nil {
		return err
	}
	if !claimed {
		stats.Lost++
		c.metrics.IncLostClaim(c.workerID)
		return nil
	}
	stats.Claimed++
	c.metrics.IncClaimed(c.workerID)
	schedule.Status = enums.ScheduleStatusProcessing

	intent, err := c.findOrCreateIntent(ctx, schedule)
	if err != nil {
		return err
	}

	// Crash recovery: an intent left over from a previous run may already
	// hold the outcome of this attempt.
	switch intent.Status {
	case enums.IntentStatusPaid:
		_, err := c.schedules.UpdateStatusIf(ctx, schedule.ID,
			[]enums.ScheduleStatus{enums.ScheduleStatusProcessing},
			enums.ScheduleStatusPaid, nil)
		return err
	case enums.IntentStatusRejected:
		return c.feedRejection(ctx, schedule, intent, stats)
	case enums.IntentStatusAmbiguous:
		return c.holdAmbiguous(ctx, schedule, intent, stats)
	}

	return c.submitCharge(ctx, schedule, intent, stats)
}

func (c *Coordinator) findOrCreateIntent(ctx context.Context, schedule *models.Schedule) (*models.PaymentIntent, error) {
	key := IdempotencyKey(schedule.ID, schedule.DueDate, schedule.RetryCount)
	intent, err := c.intents.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if intent != nil {
		return intent, nil
	}

	intent = &models.PaymentIntent{
		ID:             uuid.New(),
		ScheduleID:     schedule.ID,
		CycleDate:      schedule.DueDate,
		IdempotencyKey: key,
		Provider:       schedule.Provider,
		Amount:         schedule.Amount,
		Currency:       schedule.Currency,
		Status:         enums.IntentStatusPending,
	}
	if err := c.intents.Create(ctx, intent); err != nil {
		return nil, err
	}
	return intent, nil
}

func (c *Coordinator) submitCharge(ctx context.Context, schedule *models.Schedule, intent *models.PaymentIntent, stats *CycleStats) error {
	executor, err := c.executors.Executor(schedule.Provider)
	if err != nil {
		// No adapter for the provider: treated as a transient processor
		// condition so a config rollout does not strand schedules.
		return c.applyRejection(ctx, schedule, intent, stats,
			enums.OutcomeCodeProcessorError, err.Error())
	}

	ctx = c.logg.WithProvider(ctx, schedule.Provider.String())
	chargeCtx, cancel := context.WithTimeout(ctx, c.cfg.ChargeTimeout)
	defer cancel()

	result, err := executor.Charge(chargeCtx, psp.ChargeRequest{
		IdempotencyKey: intent.IdempotencyKey,
		Amount:         intent.Amount,
		Currency:       intent.Currency,
		MandateRef:     schedule.MandateRef,
		CustomerRef:    schedule.CustomerRef,
		Description:    fmt.Sprintf("cycle %s", intent.CycleDate.Format("2006-01-02")),
	})
	if err != nil {
		// Deadline or transport failure: the charge may exist provider-side.
		c.logg.Warn(ctx, fmt.Sprintf("charge submission ambiguous: %v", err))
		return c.holdAmbiguous(ctx, schedule, intent, stats)
	}

	switch result.Outcome {
	case psp.OutcomeAccepted:
		return c.applyAcceptance(ctx, schedule, intent, stats, result)
	case psp.OutcomeAmbiguous:
		return c.holdAmbiguous(ctx, schedule, intent, stats)
	default:
		if result.ProviderPaymentID != "" {
			if err := c.intents.SetProviderPaymentID(ctx, intent.ID, result.ProviderPaymentID); err != nil {
				return err
			}
		}
		return c.applyRejection(ctx, schedule, intent, stats, result.Code, result.Message)
	}
}

func (c *Coordinator) applyAcceptance(ctx context.Context, schedule *models.Schedule, intent *models.PaymentIntent, stats *CycleStats, result *psp.ChargeResult) error {
	if result.ProviderPaymentID != "" {
		if err := c.intents.SetProviderPaymentID(ctx, intent.ID, result.ProviderPaymentID); err != nil {
			return err
		}
	}
	moved, err := c.schedules.UpdateStatusIf(ctx, schedule.ID,
		[]enums.ScheduleStatus{enums.ScheduleStatusProcessing},
		enums.ScheduleStatusPending, nil)
	if err != nil {
		return err
	}
	if moved {
		stats.Accepted++
		c.metrics.IncCharged(c.workerID, schedule.Provider.String())
		c.logg.Info(ctx, "charge submitted, awaiting provider result")
	}
	return nil
}

// holdAmbiguous parks the attempt: the intent is marked AMBIGUOUS and the
// schedule waits at PENDING for a webhook or operator resolution. Never fed
// to the retry engine, a blind retry could double-charge.
func (c *Coordinator) holdAmbiguous(ctx context.Context, schedule *models.Schedule, intent *models.PaymentIntent, stats *CycleStats) error {
	if _, err := c.intents.UpdateStatusIf(ctx, intent.ID,
		[]enums.IntentStatus{enums.IntentStatusPending},
		enums.IntentStatusAmbiguous, nil); err != nil {
		return err
	}
	if _, err := c.schedules.UpdateStatusIf(ctx, schedule.ID,
		[]enums.ScheduleStatus{enums.ScheduleStatusProcessing},
		enums.ScheduleStatusPending, nil); err != nil {
		return err
	}
	stats.Ambiguous++
	return nil
}

func (c *Coordinator) applyRejection(ctx context.Context, schedule *models.Schedule, intent *models.PaymentIntent, stats *CycleStats, code enums.OutcomeCode, message string) error {
	if _, err := c.intents.UpdateStatusIf(ctx, intent.ID,
		[]enums.IntentStatus{enums.IntentStatusPending},
		enums.IntentStatusRejected, map[string]any{
			"error_code":    code.String(),
			"error_message": message,
		}); err != nil {
		return err
	}
	stats.Rejected++
	c.metrics.IncFailed(c.workerID, schedule.Provider.String())
	return c.retry.HandleFailure(ctx, schedule, &intent.ID, code, message)
}

// feedRejection replays a stored rejection found during crash recovery.
func (c *Coordinator) feedRejection(ctx context.Context, schedule *models.Schedule, intent *models.PaymentIntent, stats *CycleStats) error {
	code := enums.OutcomeCodeProcessorError
	if intent.ErrorCode != nil {
		if parsed, err := enums.ParseOutcomeCode(*intent.ErrorCode); err == nil {
			code = parsed
		}
	}
	message := ""
	if intent.ErrorMessage != nil {
		message = *intent.ErrorMessage
	}
	stats.Rejected++
	c.metrics.IncFailed(c.workerID, schedule.Provider.String())
	return c.retry.HandleFailure(ctx, schedule, &intent.ID, code, message)
}
