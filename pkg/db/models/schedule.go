package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumicrm/payments-backend/pkg/enums"
)

// Schedule is a recurring or one-off payment obligation. Rows are owned by
// the scheduling engine: created on contract-signed events, mutated only by
// the emission coordinator and retry engine, never deleted (soft-archived
// via ArchivedAt on cancellation).
type Schedule struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrganisationID uuid.UUID  `gorm:"column:organisation_id;type:uuid;not null;index"`
	ContractID     uuid.UUID  `gorm:"column:contract_id;type:uuid;not null;index"`
	ClientID       uuid.UUID  `gorm:"column:client_id;type:uuid;not null"`
	CompanyID      uuid.UUID  `gorm:"column:company_id;type:uuid;not null"`
	InvoiceID      *uuid.UUID `gorm:"column:invoice_id;type:uuid"`

	Amount   decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency string          `gorm:"column:currency;not null;default:'EUR'"`

	DueDate       time.Time          `gorm:"column:due_date;not null;index"`
	NextDueDate   *time.Time         `gorm:"column:next_due_date"`
	IsRecurring   bool               `gorm:"column:is_recurring;not null;default:false"`
	IntervalUnit  enums.IntervalUnit `gorm:"column:interval_unit;default:'MONTH'"`
	IntervalCount int                `gorm:"column:interval_count;not null;default:1"`

	Status            enums.ScheduleStatus `gorm:"column:status;not null;default:'PLANNED';index"`
	RetryCount        int                  `gorm:"column:retry_count;not null;default:0"`
	MaxRetries        int                  `gorm:"column:max_retries;not null;default:3"`
	NextRetryAt       *time.Time           `gorm:"column:next_retry_at;index"`
	LastFailureAt     *time.Time           `gorm:"column:last_failure_at"`
	LastFailureReason *string              `gorm:"column:last_failure_reason"`

	Provider    enums.PSPProvider `gorm:"column:provider;not null"`
	MandateRef  string            `gorm:"column:mandate_ref;not null"`
	CustomerRef string            `gorm:"column:customer_ref"`

	// CancelRequested defers cancellation of a PENDING schedule until the
	// in-flight charge attempt resolves.
	CancelRequested bool       `gorm:"column:cancel_requested;not null;default:false"`
	ArchivedAt      *time.Time `gorm:"column:archived_at"`

	Metadata  json.RawMessage `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
