package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
)

// Repository handles alert persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, alert *models.Alert) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	ExistsForSchedule(ctx context.Context, scheduleID uuid.UUID, code string) (bool, error)
	ListOpen(ctx context.Context, organisationID uuid.UUID, severity *enums.AlertSeverity, limit int) ([]models.Alert, error)
	Acknowledge(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an alert repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	var alert models.Alert
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&alert).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

func (r *repository) ExistsForSchedule(ctx context.Context, scheduleID uuid.UUID, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("schedule_id = ? AND code = ?", scheduleID, code).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListOpen(ctx context.Context, organisationID uuid.UUID, severity *enums.AlertSeverity, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.db.WithContext(ctx).
		Where("organisation_id = ? AND acknowledged_at IS NULL", organisationID).
		Order("created_at DESC").
		Limit(limit)
	if severity != nil {
		query = query.Where("severity = ?", *severity)
	}
	var open []models.Alert
	if err := query.Find(&open).Error; err != nil {
		return nil, err
	}
	return open, nil
}

// Acknowledge stamps the alert once; an already acknowledged alert is left
// untouched.
func (r *repository) Acknowledge(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ? AND acknowledged_at IS NULL", id).
		Updates(map[string]any{
			"acknowledged_by": userID,
			"acknowledged_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
