package models

import (
	"time"

	"github.com/google/uuid"
)

// HolidayZone groups non-business dates per country/region. Read-only
// reference data at computation time.
type HolidayZone struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Code        string    `gorm:"column:code;not null;uniqueIndex"`
	CountryCode string    `gorm:"column:country_code;not null"`
	Name        string    `gorm:"column:name;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Holiday is one non-business date in a zone. Explicit rows carry Date;
// recurring rows (same day every year) carry RecurringMonth/RecurringDay
// and a nil Date.
type Holiday struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ZoneID uuid.UUID `gorm:"column:zone_id;type:uuid;not null;index"`

	Date           *time.Time `gorm:"column:date;index"`
	RecurringMonth *int       `gorm:"column:recurring_month"`
	RecurringDay   *int       `gorm:"column:recurring_day"`

	Label     string    `gorm:"column:label"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
