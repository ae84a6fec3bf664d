package schedules

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
)

// Repository handles schedule persistence. Claim and the conditional status
// updates are the concurrency boundary of the engine: every mutation that
// races another worker goes through a guarded UPDATE and reports whether
// this caller won.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, schedule *models.Schedule) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error)
	ListDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.Schedule, error)
	Claim(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (bool, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from []enums.ScheduleStatus, to enums.ScheduleStatus, extra map[string]any) (bool, error)
	RequestCancel(ctx context.Context, id uuid.UUID) (bool, error)
	SetNextDueDate(ctx context.Context, id uuid.UUID, next time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a schedule repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, schedule *models.Schedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	var schedule models.Schedule
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&schedule).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &schedule, nil
}

const defaultClaimLease = 10 * time.Minute

// claimableScope selects the rows one emission tick may take: PLANNED rows
// past due, FAILED rows past due whose retry hold has elapsed, and
// PROCESSING rows whose claim lease expired. The last clause recovers
// schedules stranded by a worker that crashed after claiming; the stored
// intent then replays whatever outcome the crashed attempt already reached.
func claimableScope(now time.Time, lease time.Duration) func(*gorm.DB) *gorm.DB {
	if lease <= 0 {
		lease = defaultClaimLease
	}
	staleBefore := now.Add(-lease)
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"(status = ? AND due_date <= ?) OR (status = ? AND due_date <= ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?) OR (status = ? AND updated_at <= ?)",
			enums.ScheduleStatusPlanned, now,
			enums.ScheduleStatusFailed, now, now,
			enums.ScheduleStatusProcessing, staleBefore,
		)
	}
}

// ListDue returns candidate schedules for one emission tick.
func (r *repository) ListDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.Schedule, error) {
	if limit <= 0 {
		limit = 100
	}
	var due []models.Schedule
	err := r.db.WithContext(ctx).
		Scopes(claimableScope(now, lease)).
		Order("due_date ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}

// Claim flips the schedule to PROCESSING only while the claimable predicate
// still holds. Zero rows affected means another worker claimed it first.
// Writing updated_at renews the claim lease.
func (r *repository) Claim(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Schedule{}).
		Where("id = ?", id).
		Scopes(claimableScope(now, lease)).
		Updates(map[string]any{
			"status":     enums.ScheduleStatusProcessing,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateStatusIf moves the schedule to the target status only while its
// current status is one of from, applying extra column updates atomically.
func (r *repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from []enums.ScheduleStatus, to enums.ScheduleStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for column, value := range extra {
		updates[column] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.Schedule{}).
		Where("id = ? AND status IN (?)", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RequestCancel records cancellation intent on a PENDING schedule without
// touching its status; the in-flight attempt resolves first.
func (r *repository) RequestCancel(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Schedule{}).
		Where("id = ? AND status = ?", id, enums.ScheduleStatusPending).
		Update("cancel_requested", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetNextDueDate records the successor cycle date on a settled schedule.
// Deliberately narrow: due_date, amount and status of a PAID row are never
// written again.
func (r *repository) SetNextDueDate(ctx context.Context, id uuid.UUID, next time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Schedule{}).
		Where("id = ?", id).
		Update("next_due_date", next).Error
}
