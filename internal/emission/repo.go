package emission

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
)

// IntentRepository handles payment intent persistence. Intents are looked up
// by idempotency key before creation so a restarted cycle reuses its row.
type IntentRepository interface {
	WithTx(tx *gorm.DB) IntentRepository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.PaymentIntent, error)
	FindByProviderPaymentID(ctx context.Context, provider enums.PSPProvider, providerPaymentID string) (*models.PaymentIntent, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from []enums.IntentStatus, to enums.IntentStatus, extra map[string]any) (bool, error)
	SetProviderPaymentID(ctx context.Context, id uuid.UUID, providerPaymentID string) error
}

type intentRepository struct {
	db *gorm.DB
}

// NewIntentRepository returns an intent repository bound to the provided
// database.
func NewIntentRepository(db *gorm.DB) IntentRepository {
	return &intentRepository{db: db}
}

func (r *intentRepository) WithTx(tx *gorm.DB) IntentRepository {
	if tx == nil {
		return r
	}
	return &intentRepository{db: tx}
}

func (r *intentRepository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *intentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&intent).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *intentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&intent).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *intentRepository) FindByProviderPaymentID(ctx context.Context, provider enums.PSPProvider, providerPaymentID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_payment_id = ?", provider, providerPaymentID).
		First(&intent).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// UpdateStatusIf moves the intent to the target status only while its
// current status is one of from. Out-of-order webhook deliveries lose here
// instead of regressing a settled intent.
func (r *intentRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from []enums.IntentStatus, to enums.IntentStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for column, value := range extra {
		updates[column] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status IN (?)", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *intentRepository) SetProviderPaymentID(ctx context.Context, id uuid.UUID, providerPaymentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ?", id).
		Update("provider_payment_id", providerPaymentID).Error
}
