package battle

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
)

// MatchFunc turns a valid pair into a match. Both entries have already been
// removed from the queue; the func is responsible for putting them back on
// failure. Returning a *StaleEntryError lets the current pass retry the
// entries it keeps.
type MatchFunc func(ctx context.Context, a, b QueueEntry) error

// Matchmaker pairs waiting players. Calls for the same pool are serialized so
// the queue removal and the registry check act as one step.
type Matchmaker struct {
	queue    QueueStore
	registry *Registry
	create   MatchFunc

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMatchmaker(queue QueueStore, registry *Registry, create MatchFunc) *Matchmaker {
	return &Matchmaker{
		queue:    queue,
		registry: registry,
		create:   create,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (mm *Matchmaker) poolLock(poolID string) *sync.Mutex {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	l, ok := mm.locks[poolID]
	if !ok {
		l = &sync.Mutex{}
		mm.locks[poolID] = l
	}
	return l
}

// TryMatch pairs the pool's entries oldest first and returns how many matches
// were created.
func (mm *Matchmaker) TryMatch(ctx context.Context, poolID string) int {
	lock := mm.poolLock(poolID)
	lock.Lock()
	defer lock.Unlock()

	entries := mm.queue.Dequeue(ctx, poolID)
	if len(entries) < 2 {
		return 0
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].JoinedAt.Before(entries[j].JoinedAt)
	})

	created := 0
	for len(entries) >= 2 {
		a, b := entries[0], entries[1]
		entries = entries[2:]

		if a.PlayerID == b.PlayerID {
			// duplicate entry for one player: skip the older one, keep the newer at the front
			log.Printf("[MATCHMAKER] Duplicate entries for player %s in pool %s, skipping older entry", a.PlayerID, poolID)
			entries = append([]QueueEntry{b}, entries...)
			continue
		}

		_, aBusy := mm.registry.FindByPlayer(a.PlayerID)
		_, bBusy := mm.registry.FindByPlayer(b.PlayerID)
		if aBusy || bBusy {
			if aBusy {
				log.Printf("[MATCHMAKER] Dropping stale entry for %s (already in a match)", a.PlayerID)
				mm.queue.Remove(ctx, poolID, a)
			} else {
				entries = append([]QueueEntry{a}, entries...)
			}
			if bBusy {
				log.Printf("[MATCHMAKER] Dropping stale entry for %s (already in a match)", b.PlayerID)
				mm.queue.Remove(ctx, poolID, b)
			} else if aBusy {
				entries = append([]QueueEntry{b}, entries...)
			}
			continue
		}

		mm.queue.Remove(ctx, poolID, a)
		mm.queue.Remove(ctx, poolID, b)
		if err := mm.create(ctx, a, b); err != nil {
			log.Printf("[MATCHMAKER] Pairing %s vs %s in %s aborted: %v", a.PlayerID, b.PlayerID, poolID, err)
			var stale *StaleEntryError
			if errors.As(err, &stale) {
				entries = append(append([]QueueEntry(nil), stale.Keep...), entries...)
			}
			continue
		}
		created++
	}
	return created
}
