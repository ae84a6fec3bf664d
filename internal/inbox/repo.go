package inbox

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumicrm/payments-backend/pkg/db"
	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
)

// Repository handles inbox event persistence. Claim is the dedup boundary:
// the unique (provider, provider_event_id) index makes the insert decide
// which delivery of an event gets to apply side effects.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Claim(ctx context.Context, event *models.InboxEvent) (bool, error)
	FindByProviderEvent(ctx context.Context, provider, providerEventID string) (*models.InboxEvent, error)
	MarkStatus(ctx context.Context, id uuid.UUID, status enums.InboxStatus, updates map[string]any) error
	ListByStatus(ctx context.Context, status enums.InboxStatus, limit int) ([]models.InboxEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inbox repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Claim inserts the event record. A unique violation means another delivery
// of the same event already claimed it and this caller must not apply any
// side effect.
func (r *repository) Claim(ctx context.Context, event *models.InboxEvent) (bool, error) {
	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repository) FindByProviderEvent(ctx context.Context, provider, providerEventID string) (*models.InboxEvent, error) {
	var event models.InboxEvent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) MarkStatus(ctx context.Context, id uuid.UUID, status enums.InboxStatus, updates map[string]any) error {
	values := map[string]any{"status": status}
	for column, value := range updates {
		values[column] = value
	}
	return r.db.WithContext(ctx).
		Model(&models.InboxEvent{}).
		Where("id = ?", id).
		Updates(values).Error
}

// ListByStatus feeds the operator queue (FAILED events awaiting manual
// review).
func (r *repository) ListByStatus(ctx context.Context, status enums.InboxStatus, limit int) ([]models.InboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []models.InboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("received_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
