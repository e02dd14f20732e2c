package battle

import (
	"context"
	"log"
	"time"
)

// StartMatchmakerWorker periodically re-runs matchmaking over every pool so
// entries requeued after a failed pairing get another chance without a new join.
func StartMatchmakerWorker(ctx context.Context, e *Engine, interval time.Duration) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[MATCHMAKER] Starting matchmaker worker (poll every %v)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[MATCHMAKER] Worker stopped")
			return
		case <-ticker.C:
			if n := e.SweepPools(ctx); n > 0 {
				log.Printf("[MATCHMAKER] Sweep created %d matches", n)
			}
		}
	}
}

// StartQueueExpiryWorker drops queue entries that waited too long and forgets
// retired matches past their retention.
func StartQueueExpiryWorker(ctx context.Context, e *Engine, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[QUEUE] Expiry worker started (poll every %v)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("[QUEUE] Expiry worker stopping")
			return
		case <-ticker.C:
			e.ExpireQueued(ctx, e.sched.Now())
			if n := e.registry.PruneRetired(); n > 0 {
				log.Printf("[QUEUE] Pruned %d retired matches", n)
			}
		}
	}
}
