package memory

import (
	"context"
	"sync"
	"time"

	"innkeep/internal/app/middleware"
)

// IdempotencyStore keeps admin command outcomes for one process. Entries
// older than ttl read as absent and are pruned on the next Save; a zero ttl
// keeps everything.
type IdempotencyStore struct {
	mu      sync.Mutex
	records map[string]middleware.IdempotencyRecord
	ttl     time.Duration
	now     func() time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{records: map[string]middleware.IdempotencyRecord{}, ttl: ttl, now: time.Now}
}

func (s *IdempotencyStore) expired(rec middleware.IdempotencyRecord, now time.Time) bool {
	return s.ttl > 0 && now.Sub(rec.OccurredAt) > s.ttl
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok || s.expired(rec, s.now()) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, old := range s.records {
		if s.expired(old, now) {
			delete(s.records, k)
		}
	}
	s.records[rec.Key] = rec
	return nil
}

// Len reports the number of retained records, expired ones included until
// the next Save.
func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
