package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumicrm/payments-backend/pkg/enums"
)

// DebitPolicy carries the fields shared by every configuration level.
// Rows are append-only: a referenced configuration is never edited in
// place, a new effective-dated version is inserted instead.
type DebitPolicy struct {
	Mode          enums.DebitMode     `gorm:"column:mode;not null"`
	FixedDay      *int                `gorm:"column:fixed_day"`
	Batch         *enums.DebitBatch   `gorm:"column:batch"`
	ShiftStrategy enums.ShiftStrategy `gorm:"column:shift_strategy;not null;default:'NEXT_BUSINESS_DAY'"`
	HolidayZoneID uuid.UUID           `gorm:"column:holiday_zone_id;type:uuid;not null"`
	// No default tag: gorm drops zero-valued fields that carry one on
	// insert, and an explicit false must persist.
	IsActive      bool                `gorm:"column:is_active;not null"`
	EffectiveFrom time.Time           `gorm:"column:effective_from;not null"`
}

// SystemDebitConfiguration is the organisation-wide default, exactly one
// active row per organisation.
type SystemDebitConfiguration struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrganisationID uuid.UUID `gorm:"column:organisation_id;type:uuid;not null;index"`
	DebitPolicy    `gorm:"embedded"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

type CompanyDebitConfiguration struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrganisationID uuid.UUID `gorm:"column:organisation_id;type:uuid;not null;index"`
	CompanyID      uuid.UUID `gorm:"column:company_id;type:uuid;not null;index"`
	DebitPolicy    `gorm:"embedded"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

type ClientDebitConfiguration struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrganisationID uuid.UUID `gorm:"column:organisation_id;type:uuid;not null;index"`
	ClientID       uuid.UUID `gorm:"column:client_id;type:uuid;not null;index"`
	DebitPolicy    `gorm:"embedded"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

type ContractDebitConfiguration struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrganisationID uuid.UUID `gorm:"column:organisation_id;type:uuid;not null;index"`
	ContractID     uuid.UUID `gorm:"column:contract_id;type:uuid;not null;index"`
	DebitPolicy    `gorm:"embedded"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
