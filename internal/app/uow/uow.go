package uow

import (
	"context"

	domainacc "innkeep/internal/domain/accommodations"
	domainmaint "innkeep/internal/domain/maintenance"
	domaintariffs "innkeep/internal/domain/tariffs"
)

// UnitOfWork groups the catalog repositories behind one commit boundary.
type UnitOfWork interface {
	Accommodations() domainacc.Repository
	Periods() domaintariffs.PeriodRepository
	PriceRules() domaintariffs.PriceRuleRepository
	Holds() domainmaint.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}
