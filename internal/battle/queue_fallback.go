package battle

import (
	"context"
	"log"
	"sort"
	"sync/atomic"
)

// RemoteQueue is a queue backend that can fail.
type RemoteQueue interface {
	Enqueue(ctx context.Context, poolID string, e QueueEntry) error
	Entries(ctx context.Context, poolID string) ([]QueueEntry, error)
	Remove(ctx context.Context, poolID string, e QueueEntry) (bool, error)
	Length(ctx context.Context, poolID string) (int, error)
	Pools(ctx context.Context) ([]string, error)
}

// FallbackQueue writes to the remote backend and falls back to memory per
// operation when it errors. Reads merge both so entries written during an
// outage stay visible after recovery.
type FallbackQueue struct {
	remote   RemoteQueue
	local    *MemoryQueue
	degraded atomic.Bool
}

func NewFallbackQueue(remote RemoteQueue) *FallbackQueue {
	return &FallbackQueue{remote: remote, local: NewMemoryQueue()}
}

// Degraded reports whether the last remote call failed.
func (q *FallbackQueue) Degraded() bool {
	return q.degraded.Load()
}

func (q *FallbackQueue) observe(op string, err error) bool {
	if err != nil {
		if !q.degraded.Swap(true) {
			log.Printf("[QUEUE] Remote queue unavailable during %s, using in-memory fallback: %v", op, err)
		}
		return false
	}
	if q.degraded.Swap(false) {
		log.Printf("[QUEUE] Remote queue recovered")
	}
	return true
}

func (q *FallbackQueue) Enqueue(ctx context.Context, poolID string, e QueueEntry) {
	if q.observe("enqueue", q.remote.Enqueue(ctx, poolID, e)) {
		return
	}
	q.local.Enqueue(ctx, poolID, e)
}

func (q *FallbackQueue) Dequeue(ctx context.Context, poolID string) []QueueEntry {
	entries, err := q.remote.Entries(ctx, poolID)
	q.observe("dequeue", err)
	return append(entries, q.local.Dequeue(ctx, poolID)...)
}

func (q *FallbackQueue) Remove(ctx context.Context, poolID string, e QueueEntry) {
	_, err := q.remote.Remove(ctx, poolID, e)
	q.observe("remove", err)
	q.local.Remove(ctx, poolID, e)
}

func (q *FallbackQueue) Length(ctx context.Context, poolID string) int {
	n, err := q.remote.Length(ctx, poolID)
	if !q.observe("length", err) {
		n = 0
	}
	return n + q.local.Length(ctx, poolID)
}

func (q *FallbackQueue) Pools(ctx context.Context) []string {
	remote, err := q.remote.Pools(ctx)
	q.observe("pools", err)

	seen := make(map[string]struct{}, len(remote))
	out := make([]string, 0, len(remote))
	for _, p := range append(remote, q.local.Pools(ctx)...) {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
