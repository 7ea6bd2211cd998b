package memory

import (
	"context"
	"errors"

	"innkeep/internal/app/uow"
	domainacc "innkeep/internal/domain/accommodations"
	domainmaint "innkeep/internal/domain/maintenance"
	domaintariffs "innkeep/internal/domain/tariffs"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	AccommodationsRepo domainacc.Repository
	PeriodsRepo        domaintariffs.PeriodRepository
	PriceRulesRepo     domaintariffs.PriceRuleRepository
	HoldsRepo          domainmaint.Repository
}

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// NewFactory builds a factory over fresh empty repositories.
func NewFactory() Factory {
	return Factory{
		AccommodationsRepo: NewAccommodationRepository(),
		PeriodsRepo:        NewPeriodRepository(),
		PriceRulesRepo:     NewPriceRuleRepository(),
		HoldsRepo:          NewHoldRepository(),
	}
}

// Begin starts a lightweight transaction boundary. Writes land immediately;
// no isolation is provided.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.AccommodationsRepo == nil || f.PeriodsRepo == nil || f.PriceRulesRepo == nil || f.HoldsRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		accommodations: f.AccommodationsRepo,
		periods:        f.PeriodsRepo,
		rules:          f.PriceRulesRepo,
		holds:          f.HoldsRepo,
	}, nil
}

type Unit struct {
	accommodations domainacc.Repository
	periods        domaintariffs.PeriodRepository
	rules          domaintariffs.PriceRuleRepository
	holds          domainmaint.Repository
}

func (u *Unit) Accommodations() domainacc.Repository {
	return u.accommodations
}

func (u *Unit) Periods() domaintariffs.PeriodRepository {
	return u.periods
}

func (u *Unit) PriceRules() domaintariffs.PriceRuleRepository {
	return u.rules
}

func (u *Unit) Holds() domainmaint.Repository {
	return u.holds
}

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}

var _ uow.UoWFactory = Factory{}
