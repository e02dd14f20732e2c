package battle

import (
	"context"
	"sort"
	"sync"
)

// QueueStore holds waiting players per pool. Operations never fail from the
// caller's point of view; ordering is applied by the matchmaker.
type QueueStore interface {
	Enqueue(ctx context.Context, poolID string, e QueueEntry)
	// Dequeue returns every entry currently in the pool without removing any.
	Dequeue(ctx context.Context, poolID string) []QueueEntry
	// Remove drops the entry with the same connection identity; no-op if absent.
	Remove(ctx context.Context, poolID string, e QueueEntry)
	Length(ctx context.Context, poolID string) int
	// Pools lists pools that may hold entries.
	Pools(ctx context.Context) []string
}

// MemoryQueue is the in-process queue store.
type MemoryQueue struct {
	mu    sync.Mutex
	pools map[string][]QueueEntry
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{pools: make(map[string][]QueueEntry)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, poolID string, e QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pools[poolID] = append(q.pools[poolID], e)
}

func (q *MemoryQueue) Dequeue(_ context.Context, poolID string) []QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := q.pools[poolID]
	out := make([]QueueEntry, len(entries))
	copy(out, entries)
	return out
}

func (q *MemoryQueue) Remove(_ context.Context, poolID string, e QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := q.pools[poolID]
	for i := range entries {
		if entries[i].sameEntry(e) {
			q.pools[poolID] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(q.pools[poolID]) == 0 {
		delete(q.pools, poolID)
	}
}

func (q *MemoryQueue) Length(_ context.Context, poolID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pools[poolID])
}

func (q *MemoryQueue) Pools(_ context.Context) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.pools))
	for id := range q.pools {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
