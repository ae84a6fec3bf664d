package calendar

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

func setupCalendarTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.HolidayZone{},
		&models.Holiday{},
		&models.SystemDebitConfiguration{},
		&models.CompanyDebitConfiguration{},
		&models.ClientDebitConfiguration{},
		&models.ContractDebitConfiguration{},
	))

	for _, table := range []string{
		"holidays", "holiday_zones",
		"system_debit_configurations", "company_debit_configurations",
		"client_debit_configurations", "contract_debit_configurations",
	} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

func newCalendarService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func seedZone(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	zone := models.HolidayZone{ID: uuid.New(), Code: "FR", CountryCode: "FR", Name: "France"}
	require.NoError(t, db.Create(&zone).Error)
	return zone.ID
}

func policy(day int, zoneID uuid.UUID) models.DebitPolicy {
	return models.DebitPolicy{
		Mode:          enums.DebitModeFixedDay,
		FixedDay:      &day,
		ShiftStrategy: enums.ShiftStrategyNext,
		HolidayZoneID: zoneID,
		IsActive:      true,
		EffectiveFrom: date("2020-01-01"),
	}
}

func TestResolveConfiguration_ContractOverridesClient(t *testing.T) {
	db := setupCalendarTestDB(t)
	svc := newCalendarService(t, db)
	ctx := context.Background()

	orgID := uuid.New()
	clientID := uuid.New()
	contractID := uuid.New()
	zoneID := seedZone(t, db)

	require.NoError(t, db.Create(&models.SystemDebitConfiguration{
		ID: uuid.New(), OrganisationID: orgID, DebitPolicy: policy(28, zoneID),
	}).Error)
	require.NoError(t, db.Create(&models.ClientDebitConfiguration{
		ID: uuid.New(), OrganisationID: orgID, ClientID: clientID, DebitPolicy: policy(15, zoneID),
	}).Error)
	contractCfg := models.ContractDebitConfiguration{
		ID: uuid.New(), OrganisationID: orgID, ContractID: contractID, DebitPolicy: policy(1, zoneID),
	}
	require.NoError(t, db.Create(&contractCfg).Error)

	got, err := svc.ResolveConfiguration(ctx, ResolveQuery{
		OrganisationID: orgID,
		ContractID:     contractID,
		ClientID:       clientID,
		At:             date("2025-09-15"),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ConfigLevelContract, got.Level)
	assert.Equal(t, contractCfg.ID, got.ConfigurationID)
	require.NotNil(t, got.FixedDay)
	assert.Equal(t, 1, *got.FixedDay)
}

func TestResolveConfiguration_SkipsInactiveAndFutureRows(t *testing.T) {
	db := setupCalendarTestDB(t)
	svc := newCalendarService(t, db)
	ctx := context.Background()

	orgID := uuid.New()
	contractID := uuid.New()
	zoneID := seedZone(t, db)

	inactive := policy(1, zoneID)
	inactive.IsActive = false
	require.NoError(t, db.Create(&models.ContractDebitConfiguration{
		ID: uuid.New(), OrganisationID: orgID, ContractID: contractID, DebitPolicy: inactive,
	}).Error)

	future := policy(2, zoneID)
	future.EffectiveFrom = date("2030-01-01")
	require.NoError(t, db.Create(&models.ContractDebitConfiguration{
		ID: uuid.New(), OrganisationID: orgID, ContractID: contractID, DebitPolicy: future,
	}).Error)

	require.NoError(t, db.Create(&models.SystemDebitConfiguration{
		ID: uuid.New(), OrganisationID: orgID, DebitPolicy: policy(28, zoneID),
	}).Error)

	got, err := svc.ResolveConfiguration(ctx, ResolveQuery{
		OrganisationID: orgID,
		ContractID:     contractID,
		At:             date("2025-09-15"),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ConfigLevelSystem, got.Level)
}

func TestDeactivatedConfigurationPersistsAsInactive(t *testing.T) {
	db := setupCalendarTestDB(t)
	zoneID := seedZone(t, db)

	deactivated := policy(1, zoneID)
	deactivated.IsActive = false
	cfg := models.ContractDebitConfiguration{
		ID: uuid.New(), OrganisationID: uuid.New(), ContractID: uuid.New(),
		DebitPolicy: deactivated,
	}
	require.NoError(t, db.Create(&cfg).Error)

	var stored models.ContractDebitConfiguration
	require.NoError(t, db.Where("id = ?", cfg.ID).First(&stored).Error)
	assert.False(t, stored.IsActive)
}

func TestResolveConfiguration_MissingSystemDefaultFails(t *testing.T) {
	db := setupCalendarTestDB(t)
	svc := newCalendarService(t, db)

	_, err := svc.ResolveConfiguration(context.Background(), ResolveQuery{
		OrganisationID: uuid.New(),
		At:             date("2025-09-15"),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConfigurationMissing, typed.Code())
}

func TestPlannedDate_EndToEndWithHolidayShift(t *testing.T) {
	db := setupCalendarTestDB(t)
	svc := newCalendarService(t, db)
	ctx := context.Background()

	orgID := uuid.New()
	zoneID := seedZone(t, db)

	// 2025-10-05 is a Sunday; declaring Monday the 6th a holiday pushes
	// the planned date to Tuesday the 7th.
	holidayDate := date("2025-10-06")
	require.NoError(t, db.Create(&models.Holiday{
		ID: uuid.New(), ZoneID: zoneID, Date: &holidayDate, Label: "zone holiday",
	}).Error)

	require.NoError(t, db.Create(&models.SystemDebitConfiguration{
		ID: uuid.New(), OrganisationID: orgID, DebitPolicy: policy(5, zoneID),
	}).Error)

	got, err := svc.PlannedDate(ctx, ResolveQuery{
		OrganisationID: orgID,
		At:             date("2025-09-15"),
	})
	require.NoError(t, err)
	assert.Equal(t, date("2025-10-07"), got.Date)
	assert.Equal(t, enums.ConfigLevelSystem, got.Level)
}

func TestCheckDateEligibility(t *testing.T) {
	db := setupCalendarTestDB(t)
	svc := newCalendarService(t, db)
	ctx := context.Background()

	zoneID := seedZone(t, db)
	explicit := date("2025-12-26")
	require.NoError(t, db.Create(&models.Holiday{
		ID: uuid.New(), ZoneID: zoneID, Date: &explicit, Label: "boxing day",
	}).Error)
	month, day := 7, 14
	require.NoError(t, db.Create(&models.Holiday{
		ID: uuid.New(), ZoneID: zoneID, RecurringMonth: &month, RecurringDay: &day, Label: "bastille day",
	}).Error)

	tests := []struct {
		name string
		date string
		want bool
	}{
		{"weekday", "2025-09-16", true},
		{"saturday", "2025-09-20", false},
		{"explicit holiday", "2025-12-26", false},
		{"recurring holiday", "2026-07-14", false},
	}
	for _, tt := range tests {
		got, err := svc.CheckDateEligibility(ctx, zoneID, date(tt.date))
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestCheckDateEligibility_UnknownZone(t *testing.T) {
	db := setupCalendarTestDB(t)
	svc := newCalendarService(t, db)

	_, err := svc.CheckDateEligibility(context.Background(), uuid.New(), date("2025-09-16"))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
