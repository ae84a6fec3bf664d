package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumicrm/payments-backend/pkg/enums"
)

// Alert is an operator escalation raised by the retry engine or event
// inbox. Mutated only by acknowledgement.
type Alert struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrganisationID uuid.UUID `gorm:"column:organisation_id;type:uuid;not null;index"`

	Scope    enums.AlertScope    `gorm:"column:scope;not null"`
	Severity enums.AlertSeverity `gorm:"column:severity;not null;index"`
	Code     string              `gorm:"column:code;not null"`
	Message  string              `gorm:"column:message;not null"`

	ScheduleID *uuid.UUID `gorm:"column:schedule_id;type:uuid;index"`
	IntentID   *uuid.UUID `gorm:"column:intent_id;type:uuid"`

	AcknowledgedBy *uuid.UUID `gorm:"column:acknowledged_by;type:uuid"`
	AcknowledgedAt *time.Time `gorm:"column:acknowledged_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
