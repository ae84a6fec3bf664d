package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
)

// ResolvedConfiguration is the effective debit policy for one contract at
// one instant, with the cascade level that supplied it recorded for audit.
type ResolvedConfiguration struct {
	ConfigurationID uuid.UUID
	Level           enums.ConfigLevel
	Mode            enums.DebitMode
	FixedDay        *int
	Batch           *enums.DebitBatch
	ShiftStrategy   enums.ShiftStrategy
	HolidayZoneID   uuid.UUID
}

// ResolveQuery scopes a configuration lookup. ContractID, ClientID and
// CompanyID may be zero; the cascade skips absent levels.
type ResolveQuery struct {
	OrganisationID uuid.UUID
	ContractID     uuid.UUID
	ClientID       uuid.UUID
	CompanyID      uuid.UUID
	At             time.Time
}

// Resolver cascades Contract -> Client -> Company -> System debit
// configurations, strictly in priority order, active rows only.
type Resolver struct {
	repo Repository
}

// NewResolver builds a configuration resolver.
func NewResolver(repo Repository) (*Resolver, error) {
	if repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Resolver{repo: repo}, nil
}

// Resolve returns the highest-priority active configuration. Only a missing
// System default is an error: that is a tenant-setup defect, not a runtime
// condition.
func (r *Resolver) Resolve(ctx context.Context, q ResolveQuery) (*ResolvedConfiguration, error) {
	at := q.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	if q.ContractID != uuid.Nil {
		cfg, err := r.repo.FindActiveContractConfig(ctx, q.OrganisationID, q.ContractID, at)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return resolved(cfg.ID, enums.ConfigLevelContract, cfg.DebitPolicy), nil
		}
	}

	if q.ClientID != uuid.Nil {
		cfg, err := r.repo.FindActiveClientConfig(ctx, q.OrganisationID, q.ClientID, at)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return resolved(cfg.ID, enums.ConfigLevelClient, cfg.DebitPolicy), nil
		}
	}

	if q.CompanyID != uuid.Nil {
		cfg, err := r.repo.FindActiveCompanyConfig(ctx, q.OrganisationID, q.CompanyID, at)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return resolved(cfg.ID, enums.ConfigLevelCompany, cfg.DebitPolicy), nil
		}
	}

	cfg, err := r.repo.FindActiveSystemConfig(ctx, q.OrganisationID, at)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfigurationMissing, "no system debit configuration for organisation").
			WithDetails(map[string]any{"organisation_id": q.OrganisationID})
	}
	return resolved(cfg.ID, enums.ConfigLevelSystem, cfg.DebitPolicy), nil
}

func resolved(id uuid.UUID, level enums.ConfigLevel, policy models.DebitPolicy) *ResolvedConfiguration {
	return &ResolvedConfiguration{
		ConfigurationID: id,
		Level:           level,
		Mode:            policy.Mode,
		FixedDay:        policy.FixedDay,
		Batch:           policy.Batch,
		ShiftStrategy:   policy.ShiftStrategy,
		HolidayZoneID:   policy.HolidayZoneID,
	}
}
