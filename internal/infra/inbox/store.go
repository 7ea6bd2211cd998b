package inbox

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultRetention bounds how long processed maintenance event ids are kept.
const DefaultRetention = 14 * 24 * time.Hour

// Store remembers maintenance feed events one consumer has applied.
type Store struct {
	col      *mongo.Collection
	consumer string
}

type receipt struct {
	EventID    string    `bson:"event_id"`
	Consumer   string    `bson:"consumer"`
	ReceivedAt time.Time `bson:"received_at"`
}

// NewStore uses the maintenance_inbox collection. Receipts expire after
// retention so redeliveries older than that are applied again.
func NewStore(ctx context.Context, db *mongo.Database, consumer string, retention time.Duration) (*Store, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	col := db.Collection("maintenance_inbox")
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "received_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds()))},
	})
	if err != nil {
		return nil, err
	}
	return &Store{col: col, consumer: consumer}, nil
}

// Seen records eventID and reports whether a receipt already existed.
func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	_, err := s.col.InsertOne(ctx, receipt{EventID: eventID, Consumer: s.consumer, ReceivedAt: time.Now().UTC()})
	switch {
	case err == nil:
		return false, nil
	case mongo.IsDuplicateKeyError(err):
		return true, nil
	default:
		return false, err
	}
}

// Forget drops the receipt for eventID so a redelivery is processed again.
func (s *Store) Forget(ctx context.Context, eventID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"event_id": eventID, "consumer": s.consumer})
	return err
}
