package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumicrm/payments-backend/pkg/db/models"
)

// Repository handles debit configuration and holiday persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveContractConfig(ctx context.Context, organisationID, contractID uuid.UUID, at time.Time) (*models.ContractDebitConfiguration, error)
	FindActiveClientConfig(ctx context.Context, organisationID, clientID uuid.UUID, at time.Time) (*models.ClientDebitConfiguration, error)
	FindActiveCompanyConfig(ctx context.Context, organisationID, companyID uuid.UUID, at time.Time) (*models.CompanyDebitConfiguration, error)
	FindActiveSystemConfig(ctx context.Context, organisationID uuid.UUID, at time.Time) (*models.SystemDebitConfiguration, error)
	FindZoneByID(ctx context.Context, zoneID uuid.UUID) (*models.HolidayZone, error)
	ListHolidays(ctx context.Context, zoneID uuid.UUID, from, to time.Time) ([]models.Holiday, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a calendar repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActiveContractConfig(ctx context.Context, organisationID, contractID uuid.UUID, at time.Time) (*models.ContractDebitConfiguration, error) {
	var cfg models.ContractDebitConfiguration
	err := r.db.WithContext(ctx).
		Where("organisation_id = ? AND contract_id = ? AND is_active = ? AND effective_from <= ?", organisationID, contractID, true, at).
		Order("effective_from DESC").
		First(&cfg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *repository) FindActiveClientConfig(ctx context.Context, organisationID, clientID uuid.UUID, at time.Time) (*models.ClientDebitConfiguration, error) {
	var cfg models.ClientDebitConfiguration
	err := r.db.WithContext(ctx).
		Where("organisation_id = ? AND client_id = ? AND is_active = ? AND effective_from <= ?", organisationID, clientID, true, at).
		Order("effective_from DESC").
		First(&cfg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *repository) FindActiveCompanyConfig(ctx context.Context, organisationID, companyID uuid.UUID, at time.Time) (*models.CompanyDebitConfiguration, error) {
	var cfg models.CompanyDebitConfiguration
	err := r.db.WithContext(ctx).
		Where("organisation_id = ? AND company_id = ? AND is_active = ? AND effective_from <= ?", organisationID, companyID, true, at).
		Order("effective_from DESC").
		First(&cfg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *repository) FindActiveSystemConfig(ctx context.Context, organisationID uuid.UUID, at time.Time) (*models.SystemDebitConfiguration, error) {
	var cfg models.SystemDebitConfiguration
	err := r.db.WithContext(ctx).
		Where("organisation_id = ? AND is_active = ? AND effective_from <= ?", organisationID, true, at).
		Order("effective_from DESC").
		First(&cfg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *repository) FindZoneByID(ctx context.Context, zoneID uuid.UUID) (*models.HolidayZone, error) {
	var zone models.HolidayZone
	err := r.db.WithContext(ctx).
		Where("id = ?", zoneID).
		First(&zone).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &zone, nil
}

// ListHolidays returns the explicit holiday rows inside [from, to] plus every
// recurring row of the zone. Recurring rows have a nil date and carry
// month/day instead.
func (r *repository) ListHolidays(ctx context.Context, zoneID uuid.UUID, from, to time.Time) ([]models.Holiday, error) {
	var holidays []models.Holiday
	err := r.db.WithContext(ctx).
		Where("zone_id = ?", zoneID).
		Where("(date IS NULL) OR (date >= ? AND date <= ?)", from, to).
		Find(&holidays).Error
	if err != nil {
		return nil, err
	}
	return holidays, nil
}
