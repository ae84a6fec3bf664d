package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumicrm/payments-backend/pkg/enums"
)

// PaymentIntent records one attempt to charge a schedule for one billing
// cycle. The idempotency key is a deterministic function of the schedule id
// and cycle date, so a crashed coordinator restarting the same cycle finds
// the existing row instead of issuing a second charge.
type PaymentIntent struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ScheduleID uuid.UUID `gorm:"column:schedule_id;type:uuid;not null;index"`
	CycleDate  time.Time `gorm:"column:cycle_date;not null"`

	IdempotencyKey string `gorm:"column:idempotency_key;not null;uniqueIndex"`

	Provider          enums.PSPProvider `gorm:"column:provider;not null"`
	ProviderPaymentID *string           `gorm:"column:provider_payment_id"`

	Amount   decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency string          `gorm:"column:currency;not null"`

	Status       enums.IntentStatus `gorm:"column:status;not null;default:'PENDING';index"`
	ErrorCode    *string            `gorm:"column:error_code"`
	ErrorMessage *string            `gorm:"column:error_message"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
