package trigger

import (
	"context"
	"slices"
	"sync"
	"time"
)

// PendingEntry is a subject waiting for its debounce window to pass.
type PendingEntry struct {
	Subject   uint64    `json:"subject_id,string"`
	ChangedAt time.Time `json:"changed_at"`
}

// PendingQueue stores subject -> last change time. Upsert overwrites, so a
// subject is never queued twice.
type PendingQueue interface {
	Upsert(ctx context.Context, subject uint64, at time.Time) error
	Remove(ctx context.Context, subject uint64) (bool, error)
	// PopDue removes and returns the oldest entry changed at or before cutoff.
	PopDue(ctx context.Context, cutoff time.Time) (PendingEntry, bool, error)
	// List returns every entry, oldest first.
	List(ctx context.Context) ([]PendingEntry, error)
	Len(ctx context.Context) (int, error)
	Clear(ctx context.Context) (int, error)
}

// MemoryQueue is a process-local PendingQueue.
type MemoryQueue struct {
	mu      sync.Mutex
	entries map[uint64]time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: make(map[uint64]time.Time)}
}

func (q *MemoryQueue) Upsert(_ context.Context, subject uint64, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[subject] = at
	return nil
}

func (q *MemoryQueue) Remove(_ context.Context, subject uint64) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[subject]
	delete(q.entries, subject)
	return ok, nil
}

func (q *MemoryQueue) PopDue(_ context.Context, cutoff time.Time) (PendingEntry, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var (
		best  PendingEntry
		found bool
	)
	for s, at := range q.entries {
		if at.After(cutoff) {
			continue
		}
		if !found || at.Before(best.ChangedAt) || (at.Equal(best.ChangedAt) && s < best.Subject) {
			best = PendingEntry{Subject: s, ChangedAt: at}
			found = true
		}
	}
	if found {
		delete(q.entries, best.Subject)
	}
	return best, found, nil
}

func (q *MemoryQueue) List(context.Context) ([]PendingEntry, error) {
	q.mu.Lock()
	out := make([]PendingEntry, 0, len(q.entries))
	for s, at := range q.entries {
		out = append(out, PendingEntry{Subject: s, ChangedAt: at})
	}
	q.mu.Unlock()

	slices.SortFunc(out, comparePending)
	return out, nil
}

func (q *MemoryQueue) Len(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), nil
}

func (q *MemoryQueue) Clear(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.entries)
	clear(q.entries)
	return n, nil
}

func comparePending(a, b PendingEntry) int {
	if c := a.ChangedAt.Compare(b.ChangedAt); c != 0 {
		return c
	}
	switch {
	case a.Subject < b.Subject:
		return -1
	case a.Subject > b.Subject:
		return 1
	}
	return 0
}

var _ PendingQueue = (*MemoryQueue)(nil)
