package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lumicrm/payments-backend/pkg/enums"
)

// InboxEvent deduplicates one inbound PSP webhook or domain event. The row
// is inserted before any side effect is applied; the unique
// (provider, provider_event_id) pair makes the insert the claim.
type InboxEvent struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Provider        string    `gorm:"column:provider;not null;uniqueIndex:idx_inbox_provider_event"`
	ProviderEventID string    `gorm:"column:provider_event_id;not null;uniqueIndex:idx_inbox_provider_event"`
	EventType       string    `gorm:"column:event_type;not null"`

	RawPayload     json.RawMessage `gorm:"column:raw_payload;type:jsonb"`
	SignatureValid bool            `gorm:"column:signature_valid;not null;default:false"`

	Status enums.InboxStatus `gorm:"column:status;not null;default:'RECEIVED';index"`
	Error  *string           `gorm:"column:error"`

	ReceivedAt  time.Time  `gorm:"column:received_at;autoCreateTime"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
}
