package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Client struct {
	DB *mongo.Database
}

func New(uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// Factory returns a unit-of-work factory over the catalog collections.
func (c *Client) Factory() Factory {
	return Factory{
		DB:                 c.DB,
		AccommodationsRepo: NewAccommodationRepository(c.DB),
		PeriodsRepo:        NewPeriodRepository(c.DB),
		PriceRulesRepo:     NewPriceRuleRepository(c.DB),
		HoldsRepo:          NewHoldRepository(c.DB),
	}
}

// EnsureIndexes creates the secondary indexes the catalog queries rely on.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		accommodationsCollection: {
			{Keys: bson.D{{Key: "capacity", Value: 1}}},
		},
		periodsCollection: {
			{Keys: bson.D{{Key: "start", Value: 1}, {Key: "end", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
		},
		priceRulesCollection: {
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "period_id", Value: 1}}},
		},
		holdsCollection: {
			{Keys: bson.D{{Key: "accommodation_id", Value: 1}, {Key: "closed_at", Value: 1}}},
			{Keys: bson.D{{Key: "reference", Value: 1}}},
		},
	}
	for name, models := range specs {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
