package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"innkeep/internal/app/uow"
	domainacc "innkeep/internal/domain/accommodations"
	domainmaint "innkeep/internal/domain/maintenance"
	"innkeep/internal/domain/shared/money"
	domaintariffs "innkeep/internal/domain/tariffs"
)

const (
	accommodationsCollection = "agg_accommodations"
	periodsCollection        = "agg_tariff_periods"
	priceRulesCollection     = "agg_price_rules"
	holdsCollection          = "agg_maintenance_holds"
)

// ErrConcurrentUpdate is a lost version check; it matches uow.ErrConflict.
var ErrConcurrentUpdate = fmt.Errorf("mongo: concurrent update detected: %w", uow.ErrConflict)

var catalogOrder = options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

// saveVersioned upserts doc guarded by the aggregate version it was loaded at.
func saveVersioned(ctx context.Context, col *mongo.Collection, id string, version int64, doc any) error {
	filter := bson.M{"_id": id, "version": version}
	res, err := col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

func findAll[D any, A any](ctx context.Context, col *mongo.Collection, filter any, opts *options.FindOptions, convert func(D) (A, error)) ([]A, error) {
	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]A, 0)
	for cur.Next(ctx) {
		var doc D
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		agg, err := convert(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, cur.Err()
}

type AccommodationRepository struct {
	col *mongo.Collection
}

func NewAccommodationRepository(db *mongo.Database) *AccommodationRepository {
	return &AccommodationRepository{col: db.Collection(accommodationsCollection)}
}

func (r *AccommodationRepository) ByID(ctx context.Context, id domainacc.AccommodationID) (*domainacc.Accommodation, error) {
	var doc accommodationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainacc.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (r *AccommodationRepository) List(ctx context.Context, filter domainacc.Filter) ([]*domainacc.Accommodation, error) {
	query := bson.M{}
	if filter.MinCapacity > 0 {
		query["capacity"] = bson.M{"$gte": filter.MinCapacity}
	}
	if filter.ExcludeBlocked {
		query["block.blocked"] = bson.M{"$ne": true}
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	return findAll(ctx, r.col, query, opts, accommodationDocument.toAggregate)
}

func (r *AccommodationRepository) Save(ctx context.Context, acc *domainacc.Accommodation) error {
	doc := newAccommodationDocument(acc)
	doc.Version = acc.Version + 1
	if err := saveVersioned(ctx, r.col, doc.ID, acc.Version, doc); err != nil {
		return err
	}
	acc.Version = doc.Version
	return nil
}

type accommodationDocument struct {
	ID        string        `bson:"_id"`
	Name      string        `bson:"name"`
	Category  string        `bson:"category"`
	Capacity  int           `bson:"capacity"`
	Block     blockDocument `bson:"block"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
	Version   int64         `bson:"version"`
}

type blockDocument struct {
	Blocked bool       `bson:"blocked"`
	Reason  string     `bson:"reason,omitempty"`
	Note    string     `bson:"note,omitempty"`
	From    *time.Time `bson:"from,omitempty"`
	Until   *time.Time `bson:"until,omitempty"`
}

func newAccommodationDocument(a *domainacc.Accommodation) accommodationDocument {
	return accommodationDocument{
		ID:       string(a.ID),
		Name:     a.Name,
		Category: string(a.Category),
		Capacity: a.Capacity,
		Block: blockDocument{
			Blocked: a.Block.Blocked,
			Reason:  a.Block.Reason,
			Note:    a.Block.Note,
			From:    a.Block.From,
			Until:   a.Block.Until,
		},
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (d accommodationDocument) toAggregate() (*domainacc.Accommodation, error) {
	category, err := domainacc.ParseCategory(d.Category)
	if err != nil {
		return nil, fmt.Errorf("mongo: accommodation %s: %w", d.ID, err)
	}
	return &domainacc.Accommodation{
		ID:       domainacc.AccommodationID(d.ID),
		Name:     d.Name,
		Category: category,
		Capacity: d.Capacity,
		Block: domainacc.Block{
			Blocked: d.Block.Blocked,
			Reason:  d.Block.Reason,
			Note:    d.Block.Note,
			From:    utcPtr(d.Block.From),
			Until:   utcPtr(d.Block.Until),
		},
		Version:   d.Version,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}, nil
}

type PeriodRepository struct {
	col *mongo.Collection
}

func NewPeriodRepository(db *mongo.Database) *PeriodRepository {
	return &PeriodRepository{col: db.Collection(periodsCollection)}
}

func (r *PeriodRepository) ByID(ctx context.Context, id domaintariffs.PeriodID) (*domaintariffs.Period, error) {
	var doc periodDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaintariffs.ErrPeriodNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (r *PeriodRepository) List(ctx context.Context) ([]*domaintariffs.Period, error) {
	return findAll(ctx, r.col, bson.M{}, catalogOrder, periodDocument.toAggregate)
}

func (r *PeriodRepository) Overlapping(ctx context.Context, from, to time.Time) ([]*domaintariffs.Period, error) {
	query := bson.M{
		"start": bson.M{"$lte": to.UTC()},
		"end":   bson.M{"$gte": from.UTC()},
	}
	return findAll(ctx, r.col, query, catalogOrder, periodDocument.toAggregate)
}

func (r *PeriodRepository) Save(ctx context.Context, p *domaintariffs.Period) error {
	doc := periodDocument{
		ID:        string(p.ID),
		Name:      p.Name,
		Start:     p.Start.UTC(),
		End:       p.End.UTC(),
		Holiday:   p.Holiday,
		MinStay:   p.MinStay,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Version:   p.Version + 1,
	}
	if err := saveVersioned(ctx, r.col, doc.ID, p.Version, doc); err != nil {
		return err
	}
	p.Version = doc.Version
	return nil
}

type periodDocument struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Start     time.Time `bson:"start"`
	End       time.Time `bson:"end"`
	Holiday   bool      `bson:"holiday"`
	MinStay   int       `bson:"min_stay"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
	Version   int64     `bson:"version"`
}

func (d periodDocument) toAggregate() (*domaintariffs.Period, error) {
	return &domaintariffs.Period{
		ID:        domaintariffs.PeriodID(d.ID),
		Name:      d.Name,
		Start:     d.Start.UTC(),
		End:       d.End.UTC(),
		Holiday:   d.Holiday,
		MinStay:   max(d.MinStay, 1),
		Version:   d.Version,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}, nil
}

type PriceRuleRepository struct {
	col *mongo.Collection
}

func NewPriceRuleRepository(db *mongo.Database) *PriceRuleRepository {
	return &PriceRuleRepository{col: db.Collection(priceRulesCollection)}
}

func (r *PriceRuleRepository) ByID(ctx context.Context, id domaintariffs.PriceRuleID) (*domaintariffs.PriceRule, error) {
	var doc priceRuleDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaintariffs.ErrRuleNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (r *PriceRuleRepository) List(ctx context.Context, filter domaintariffs.RuleFilter) ([]*domaintariffs.PriceRule, error) {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = string(filter.Category)
	}
	if len(filter.PeriodIDs) > 0 {
		ids := make([]string, 0, len(filter.PeriodIDs))
		for _, id := range filter.PeriodIDs {
			ids = append(ids, string(id))
		}
		query["period_id"] = bson.M{"$in": ids}
	}
	return findAll(ctx, r.col, query, catalogOrder, priceRuleDocument.toAggregate)
}

func (r *PriceRuleRepository) Save(ctx context.Context, rule *domaintariffs.PriceRule) error {
	nightly, err := primitive.ParseDecimal128(rule.Nightly.Amount.String())
	if err != nil {
		return fmt.Errorf("mongo: price rule %s nightly: %w", rule.ID, err)
	}
	doc := priceRuleDocument{
		ID:                string(rule.ID),
		Category:          string(rule.Category),
		People:            rule.People,
		PaymentMethod:     string(rule.PaymentMethod),
		PeriodID:          string(rule.PeriodID),
		Nightly:           nightly,
		Currency:          rule.Nightly.Currency,
		MinStay:           rule.MinStay,
		IncludesBreakfast: rule.IncludesBreakfast,
		CreatedAt:         rule.CreatedAt,
		UpdatedAt:         rule.UpdatedAt,
		Version:           rule.Version + 1,
	}
	if err := saveVersioned(ctx, r.col, doc.ID, rule.Version, doc); err != nil {
		return err
	}
	rule.Version = doc.Version
	return nil
}

type priceRuleDocument struct {
	ID                string               `bson:"_id"`
	Category          string               `bson:"category"`
	People            int                  `bson:"people"`
	PaymentMethod     string               `bson:"payment_method"`
	PeriodID          string               `bson:"period_id"`
	Nightly           primitive.Decimal128 `bson:"nightly"`
	Currency          string               `bson:"currency"`
	MinStay           int                  `bson:"min_stay"`
	IncludesBreakfast bool                 `bson:"includes_breakfast"`
	CreatedAt         time.Time            `bson:"created_at"`
	UpdatedAt         time.Time            `bson:"updated_at"`
	Version           int64                `bson:"version"`
}

func (d priceRuleDocument) toAggregate() (*domaintariffs.PriceRule, error) {
	amount, err := decimal.NewFromString(d.Nightly.String())
	if err != nil {
		return nil, fmt.Errorf("mongo: price rule %s nightly: %w", d.ID, err)
	}
	nightly, err := money.New(amount, d.Currency)
	if err != nil {
		return nil, fmt.Errorf("mongo: price rule %s: %w", d.ID, err)
	}
	category, err := domainacc.ParseCategory(d.Category)
	if err != nil {
		return nil, fmt.Errorf("mongo: price rule %s: %w", d.ID, err)
	}
	method, err := domaintariffs.ParsePaymentMethod(d.PaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("mongo: price rule %s: %w", d.ID, err)
	}
	return &domaintariffs.PriceRule{
		ID:                domaintariffs.PriceRuleID(d.ID),
		Category:          category,
		People:            d.People,
		PaymentMethod:     method,
		PeriodID:          domaintariffs.PeriodID(d.PeriodID),
		Nightly:           nightly,
		MinStay:           max(d.MinStay, 1),
		IncludesBreakfast: d.IncludesBreakfast,
		Version:           d.Version,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}, nil
}

type HoldRepository struct {
	col *mongo.Collection
}

func NewHoldRepository(db *mongo.Database) *HoldRepository {
	return &HoldRepository{col: db.Collection(holdsCollection)}
}

func (r *HoldRepository) HasActiveHold(ctx context.Context, id domainacc.AccommodationID) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"accommodation_id": string(id), "closed_at": nil}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *HoldRepository) ByID(ctx context.Context, id domainmaint.HoldID) (*domainmaint.Hold, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)}, nil)
}

func (r *HoldRepository) ByReference(ctx context.Context, reference string) (*domainmaint.Hold, error) {
	if reference == "" {
		return nil, domainmaint.ErrHoldNotFound
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "opened_at", Value: -1}})
	return r.findOne(ctx, bson.M{"reference": reference}, opts)
}

func (r *HoldRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domainmaint.Hold, error) {
	var doc holdDocument
	findOpts := []*options.FindOneOptions{}
	if opts != nil {
		findOpts = append(findOpts, opts)
	}
	if err := r.col.FindOne(ctx, filter, findOpts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainmaint.ErrHoldNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (r *HoldRepository) Active(ctx context.Context) ([]*domainmaint.Hold, error) {
	opts := options.Find().SetSort(bson.D{{Key: "opened_at", Value: 1}})
	return findAll(ctx, r.col, bson.M{"closed_at": nil}, opts, holdDocument.toAggregate)
}

func (r *HoldRepository) Save(ctx context.Context, h *domainmaint.Hold) error {
	doc := holdDocument{
		ID:              string(h.ID),
		AccommodationID: string(h.AccommodationID),
		Reason:          h.Reason,
		Reference:       h.Reference,
		OpenedAt:        h.OpenedAt,
		ClosedAt:        h.ClosedAt,
	}
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

type holdDocument struct {
	ID              string     `bson:"_id"`
	AccommodationID string     `bson:"accommodation_id"`
	Reason          string     `bson:"reason"`
	Reference       string     `bson:"reference"`
	OpenedAt        time.Time  `bson:"opened_at"`
	ClosedAt        *time.Time `bson:"closed_at"`
}

func (d holdDocument) toAggregate() (*domainmaint.Hold, error) {
	return &domainmaint.Hold{
		ID:              domainmaint.HoldID(d.ID),
		AccommodationID: domainacc.AccommodationID(d.AccommodationID),
		Reason:          d.Reason,
		Reference:       d.Reference,
		OpenedAt:        d.OpenedAt.UTC(),
		ClosedAt:        utcPtr(d.ClosedAt),
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

var (
	_ domainacc.Repository              = (*AccommodationRepository)(nil)
	_ domaintariffs.PeriodRepository    = (*PeriodRepository)(nil)
	_ domaintariffs.PriceRuleRepository = (*PriceRuleRepository)(nil)
	_ domainmaint.Repository            = (*HoldRepository)(nil)
)
