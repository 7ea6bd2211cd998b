package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"innkeep/internal/app/uow"
	domainacc "innkeep/internal/domain/accommodations"
	domainmaint "innkeep/internal/domain/maintenance"
	domaintariffs "innkeep/internal/domain/tariffs"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	AccommodationsRepo domainacc.Repository
	PeriodsRepo        domaintariffs.PeriodRepository
	PriceRulesRepo     domaintariffs.PriceRuleRepository
	HoldsRepo          domainmaint.Repository
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a MongoDB session/transaction. Read-only units skip the
// transaction and read with the database defaults.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	unit := &Unit{
		db:             f.DB,
		accommodations: f.AccommodationsRepo,
		periods:        f.PeriodsRepo,
		rules:          f.PriceRulesRepo,
		holds:          f.HoldsRepo,
	}
	if opts.ReadOnly {
		return unit, nil
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	unit.session = session
	return unit, nil
}

type Unit struct {
	db      *mongo.Database
	session mongo.Session
	done    bool

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
	if u.session == nil || u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	return commitError(u.session.CommitTransaction(ctx))
}

// commitError reports transaction aborts the server marks as retryable as
// uow.ErrConflict.
func commitError(err error) error {
	var labeled mongo.LabeledError
	if err != nil && errors.As(err, &labeled) &&
		(labeled.HasErrorLabel("TransientTransactionError") || labeled.HasErrorLabel("UnknownTransactionCommitResult")) {
		return fmt.Errorf("%w: %v", uow.ErrConflict, err)
	}
	return err
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.session == nil || u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	if u.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
