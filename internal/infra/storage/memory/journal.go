package memory

import (
	"context"
	"sync"
	"time"

	"innkeep/internal/app/policies"
	"innkeep/internal/domain/shared/daterange"
)

// QuoteJournal is a bounded in-memory journal; the oldest entries are
// overwritten once capacity is reached.
type QuoteJournal struct {
	mu      sync.RWMutex
	entries []policies.QuoteEntry
	next    int
	full    bool
}

const defaultJournalCapacity = 1024

func NewQuoteJournal(capacity int) *QuoteJournal {
	if capacity <= 0 {
		capacity = defaultJournalCapacity
	}
	return &QuoteJournal{entries: make([]policies.QuoteEntry, capacity)}
}

func (j *QuoteJournal) Record(ctx context.Context, entries []policies.QuoteEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range entries {
		j.entries[j.next] = e
		j.next = (j.next + 1) % len(j.entries)
		if j.next == 0 {
			j.full = true
		}
	}
	return nil
}

// Recent returns entries for the given check-in day, newest first.
func (j *QuoteJournal) Recent(ctx context.Context, checkIn time.Time, limit int) ([]policies.QuoteEntry, error) {
	day := daterange.Day(checkIn)
	j.mu.RLock()
	defer j.mu.RUnlock()
	size := j.next
	if j.full {
		size = len(j.entries)
	}
	out := make([]policies.QuoteEntry, 0)
	for i := 0; i < size; i++ {
		idx := (j.next - 1 - i + len(j.entries)) % len(j.entries)
		e := j.entries[idx]
		if !daterange.Day(e.CheckIn).Equal(day) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var _ policies.QuoteJournal = (*QuoteJournal)(nil)
