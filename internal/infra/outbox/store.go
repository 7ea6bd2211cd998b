package outbox

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "innkeep/internal/app/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
	stateDead    = "DEAD"
)

// DefaultClaimLease is how long a claimed event stays reserved before another
// worker may take it over.
const DefaultClaimLease = time.Minute

// Store keeps catalog events in catalog_outbox until a Worker relays them.
type Store struct {
	col   *mongo.Collection
	lease time.Duration
	now   func() time.Time
}

// NewStore creates the collection indexes. Add runs inside the caller's
// session, so events commit together with the aggregate changes.
func NewStore(ctx context.Context, db *mongo.Database) (*Store, error) {
	col := db.Collection("catalog_outbox")
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "claimed_at", Value: 1}}},
	})
	if err != nil {
		return nil, err
	}
	return &Store{col: col, lease: DefaultClaimLease, now: time.Now}, nil
}

// EventDocument is one stored catalog event and its delivery state.
type EventDocument struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	Payload     []byte            `bson:"payload"`
	OccurredAt  time.Time         `bson:"occurred_at"`
	Aggregate   string            `bson:"aggregate"`
	Headers     map[string]string `bson:"headers,omitempty"`
	State       string            `bson:"state"`
	Attempts    int               `bson:"attempts"`
	NextAttempt time.Time         `bson:"next_attempt_at"`
	CreatedAt   time.Time         `bson:"created_at"`
	ClaimedBy   string            `bson:"claimed_by,omitempty"`
	ClaimedAt   time.Time         `bson:"claimed_at,omitempty"`
	SentAt      time.Time         `bson:"sent_at,omitempty"`
	LastError   string            `bson:"last_error,omitempty"`
}

func newDocument(rec appoutbox.EventRecord, now time.Time) EventDocument {
	return EventDocument{
		ID:          rec.ID,
		Name:        rec.Name,
		Payload:     rec.Payload,
		OccurredAt:  rec.OccurredAt,
		Aggregate:   rec.Aggregate,
		Headers:     rec.Headers,
		State:       stateNew,
		NextAttempt: now,
		CreatedAt:   now,
	}
}

// Record rebuilds the application record a document was stored from.
func (d *EventDocument) Record() appoutbox.EventRecord {
	return appoutbox.EventRecord{
		ID:         d.ID,
		Name:       d.Name,
		Payload:    d.Payload,
		OccurredAt: d.OccurredAt,
		Aggregate:  d.Aggregate,
		Headers:    d.Headers,
	}
}

func (s *Store) Add(ctx context.Context, record appoutbox.EventRecord) error {
	_, err := s.col.InsertOne(ctx, newDocument(record, s.now().UTC()))
	return err
}

// Flush is a no-op; the Worker relays stored events.
func (s *Store) Flush(context.Context) error {
	return nil
}

// Claim reserves the oldest due event for workerID. Events claimed longer
// than the lease ago are considered abandoned and can be claimed again.
func (s *Store) Claim(ctx context.Context, workerID string) (*EventDocument, error) {
	now := s.now().UTC()
	filter := bson.M{"$or": bson.A{
		bson.M{"state": bson.M{"$in": bson.A{stateNew, stateFailed}}, "next_attempt_at": bson.M{"$lte": now}},
		bson.M{"state": stateClaimed, "claimed_at": bson.M{"$lte": now.Add(-s.lease)}},
	}}
	update := bson.M{"$set": bson.M{"state": stateClaimed, "claimed_by": workerID, "claimed_at": now}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "created_at", Value: 1}})
	var doc EventDocument
	if err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"state": stateSent, "sent_at": s.now().UTC()}})
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"state": stateFailed, "next_attempt_at": next, "last_error": errMsg},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}

// MarkDead parks an event that exhausted its attempts; it is never claimed
// again and stays for inspection.
func (s *Store) MarkDead(ctx context.Context, id string, errMsg string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"state": stateDead, "last_error": errMsg},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}

var _ appoutbox.Outbox = (*Store)(nil)
