package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumicrm/payments-backend/internal/alerts"
	"github.com/lumicrm/payments-backend/internal/schedules"
	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

const (
	alertCodeRetriesExhausted = "PAYMENT_RETRIES_EXHAUSTED"
	alertCodeTerminalFailure  = "PAYMENT_TERMINAL_FAILURE"
	alertCodeValidationError  = "PAYMENT_VALIDATION_ERROR"
)

var retryableCodes = map[enums.OutcomeCode]struct{}{
	enums.OutcomeCodeInsufficientFunds: {},
	enums.OutcomeCodeProcessorError:    {},
	enums.OutcomeCodeRateLimited:       {},
	enums.OutcomeCodeBankTimeout:       {},
}

var terminalCodes = map[enums.OutcomeCode]struct{}{
	enums.OutcomeCodeInvalidInstrument: {},
	enums.OutcomeCodeMandateCancelled:  {},
	enums.OutcomeCodeMandateRevoked:    {},
	enums.OutcomeCodeFraudBlock:        {},
	enums.OutcomeCodeAccountClosed:     {},
}

// IsRetryable reports whether the outcome code is worth another attempt.
// Unknown codes are treated as terminal: retrying blindly against an
// unclassified provider error risks double-charging disputes.
func IsRetryable(code enums.OutcomeCode) bool {
	_, ok := retryableCodes[code]
	return ok
}

// IsTerminal reports whether the outcome code forecloses further attempts.
func IsTerminal(code enums.OutcomeCode) bool {
	_, ok := terminalCodes[code]
	return ok
}

// EngineParams groups dependencies for the retry engine.
type EngineParams struct {
	Schedules schedules.Repository
	Alerts    alerts.Sink
	Backoff   BackoffPolicy
	Logger    *logger.Logger
	Now       func() time.Time
}

// Engine classifies charge failures and drives the schedule through
// FAILED/UNPAID, escalating to operator alerts on exhaustion and terminal
// errors.
type Engine struct {
	schedules schedules.Repository
	alerts    alerts.Sink
	backoff   BackoffPolicy
	logg      *logger.Logger
	now       func() time.Time
}

// NewEngine builds a retry engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Schedules == nil {
		return nil, errors.New("schedules repo is required")
	}
	if params.Alerts == nil {
		return nil, errors.New("alert sink is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		schedules: params.Schedules,
		alerts:    params.Alerts,
		backoff:   params.Backoff,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// inFlightStates are the statuses a failure outcome can arrive in:
// PROCESSING for synchronous rejections, PENDING for webhook results.
var inFlightStates = []enums.ScheduleStatus{
	enums.ScheduleStatusProcessing,
	enums.ScheduleStatusPending,
}

// resolvableStates additionally covers FAILED so a late terminal outcome
// still lands the schedule in UNPAID.
var resolvableStates = []enums.ScheduleStatus{
	enums.ScheduleStatusProcessing,
	enums.ScheduleStatusPending,
	enums.ScheduleStatusFailed,
}

// HandleFailure applies one failure outcome to the schedule. The guarded
// updates keep concurrent deliveries of the same outcome from stacking:
// only one caller moves the row.
func (e *Engine) HandleFailure(ctx context.Context, schedule *models.Schedule, intentID *uuid.UUID, code enums.OutcomeCode, message string) error {
	if schedule == nil {
		return errors.New("schedule is required")
	}
	ctx = e.logg.WithScheduleID(ctx, schedule.ID.String())
	ctx = e.logg.WithField(ctx, "outcome_code", code.String())
	now := e.now()

	// A deferred cancellation resolves here: the failed attempt is
	// recorded and the schedule goes to CANCELLED instead of retrying.
	if schedule.CancelRequested {
		moved, err := e.schedules.UpdateStatusIf(ctx, schedule.ID, resolvableStates,
			enums.ScheduleStatusCancelled, map[string]any{
				"last_failure_at":     now,
				"last_failure_reason": failureReason(code, message),
				"archived_at":         now,
			})
		if err != nil {
			return err
		}
		if moved {
			e.logg.Info(ctx, "deferred cancellation applied after failed attempt")
		}
		return nil
	}

	switch {
	case code == enums.OutcomeCodeValidation:
		return e.terminate(ctx, schedule, intentID, code, message, now,
			enums.AlertSeverityWarning, alertCodeValidationError)
	case IsRetryable(code):
		return e.retryOrExhaust(ctx, schedule, intentID, code, message, now)
	default:
		return e.terminate(ctx, schedule, intentID, code, message, now,
			enums.AlertSeverityWarning, alertCodeTerminalFailure)
	}
}

func (e *Engine) retryOrExhaust(ctx context.Context, schedule *models.Schedule, intentID *uuid.UUID, code enums.OutcomeCode, message string, now time.Time) error {
	newCount := schedule.RetryCount + 1
	if newCount >= schedule.MaxRetries {
		if err := e.markUnpaid(ctx, schedule, code, message, now, newCount); err != nil {
			return err
		}
		scheduleID := schedule.ID
		_, err := e.alerts.RaiseOncePerSchedule(ctx, alerts.RaiseParams{
			OrganisationID: schedule.OrganisationID,
			Scope:          enums.AlertScopePayment,
			Severity:       enums.AlertSeverityCritical,
			Code:           alertCodeRetriesExhausted,
			Message:        fmt.Sprintf("schedule exhausted %d retries, last outcome %s", schedule.MaxRetries, code),
			ScheduleID:     &scheduleID,
			IntentID:       intentID,
		})
		if err != nil {
			return err
		}
		e.logg.Warn(ctx, "retries exhausted, schedule unpaid")
		return nil
	}

	nextRetryAt := e.backoff.NextRetryAt(now, schedule.ID, newCount)
	moved, err := e.schedules.UpdateStatusIf(ctx, schedule.ID, inFlightStates,
		enums.ScheduleStatusFailed, map[string]any{
			"retry_count":         newCount,
			"next_retry_at":       nextRetryAt,
			"last_failure_at":     now,
			"last_failure_reason": failureReason(code, message),
		})
	if err != nil {
		return err
	}
	if !moved {
		e.logg.Warn(ctx, "failure outcome ignored, schedule already moved")
		return nil
	}
	ctx = e.logg.WithField(ctx, "next_retry_at", nextRetryAt)
	e.logg.Info(ctx, "schedule scheduled for retry")
	return nil
}

func (e *Engine) terminate(ctx context.Context, schedule *models.Schedule, intentID *uuid.UUID, code enums.OutcomeCode, message string, now time.Time, severity enums.AlertSeverity, alertCode string) error {
	if err := e.markUnpaid(ctx, schedule, code, message, now, schedule.RetryCount); err != nil {
		return err
	}
	scheduleID := schedule.ID
	_, err := e.alerts.RaiseOncePerSchedule(ctx, alerts.RaiseParams{
		OrganisationID: schedule.OrganisationID,
		Scope:          enums.AlertScopePayment,
		Severity:       severity,
		Code:           alertCode,
		Message:        fmt.Sprintf("schedule unpaid on %s outcome", code),
		ScheduleID:     &scheduleID,
		IntentID:       intentID,
	})
	if err != nil {
		return err
	}
	e.logg.Warn(ctx, "schedule unpaid on non-retryable outcome")
	return nil
}

// markUnpaid collapses the transient FAILED hop into one guarded write:
// the row goes straight from its in-flight status to UNPAID so no reader
// ever observes a FAILED row with no next_retry_at.
func (e *Engine) markUnpaid(ctx context.Context, schedule *models.Schedule, code enums.OutcomeCode, message string, now time.Time, retryCount int) error {
	moved, err := e.schedules.UpdateStatusIf(ctx, schedule.ID, resolvableStates,
		enums.ScheduleStatusUnpaid, map[string]any{
			"retry_count":         retryCount,
			"next_retry_at":       nil,
			"last_failure_at":     now,
			"last_failure_reason": failureReason(code, message),
		})
	if err != nil {
		return err
	}
	if !moved {
		e.logg.Warn(ctx, "unpaid transition skipped, schedule already moved")
	}
	return nil
}

func failureReason(code enums.OutcomeCode, message string) string {
	if message == "" {
		return code.String()
	}
	return fmt.Sprintf("%s: %s", code, message)
}
