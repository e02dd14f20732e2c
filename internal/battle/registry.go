package battle

import (
	"sync"
	"time"
)

type retiredMatch struct {
	match     *Match
	expiresAt time.Time
}

// Registry indexes active matches by id and by player. A player resolves to
// at most one active match. Finished matches are kept in a separate retired
// table for status queries and never show up in FindByPlayer.
type Registry struct {
	mu        sync.RWMutex
	matches   map[string]*Match
	byPlayer  map[string]string
	retired   map[string]retiredMatch
	retention time.Duration
	now       func() time.Time
}

func NewRegistry(retention time.Duration) *Registry {
	return &Registry{
		matches:   make(map[string]*Match),
		byPlayer:  make(map[string]string),
		retired:   make(map[string]retiredMatch),
		retention: retention,
		now:       time.Now,
	}
}

// Put registers m under both players. It fails with ErrPlayerBusy, changing
// nothing, if either player already has an active match.
func (r *Registry) Put(m *Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pid := range m.playerIDs() {
		if _, busy := r.byPlayer[pid]; busy {
			return ErrPlayerBusy
		}
	}
	r.matches[m.ID] = m
	for _, pid := range m.playerIDs() {
		r.byPlayer[pid] = m.ID
	}
	return nil
}

// Get returns an active match.
func (r *Registry) Get(matchID string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[matchID]
	return m, ok
}

// FindByPlayer returns the player's active match.
func (r *Registry) FindByPlayer(playerID string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	m, ok := r.matches[id]
	return m, ok
}

// Lookup returns an active or recently finished match.
func (r *Registry) Lookup(matchID string) (*Match, bool) {
	r.mu.RLock()
	if m, ok := r.matches[matchID]; ok {
		r.mu.RUnlock()
		return m, true
	}
	rm, ok := r.retired[matchID]
	r.mu.RUnlock()
	if !ok || r.now().After(rm.expiresAt) {
		return nil, false
	}
	return rm.match, true
}

// Remove drops the match from both active indexes and retires it.
func (r *Registry) Remove(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.detach(matchID)
	if m != nil && r.retention > 0 {
		r.retired[matchID] = retiredMatch{match: m, expiresAt: r.now().Add(r.retention)}
	}
}

// Discard drops a match that never started without retiring it.
func (r *Registry) Discard(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detach(matchID)
}

func (r *Registry) detach(matchID string) *Match {
	m, ok := r.matches[matchID]
	if !ok {
		return nil
	}
	delete(r.matches, matchID)
	for _, pid := range m.playerIDs() {
		if r.byPlayer[pid] == matchID {
			delete(r.byPlayer, pid)
		}
	}
	return m
}

// PruneRetired forgets retired matches past their retention.
func (r *Registry) PruneRetired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	pruned := 0
	for id, rm := range r.retired {
		if now.After(rm.expiresAt) {
			delete(r.retired, id)
			pruned++
		}
	}
	return pruned
}

// ActiveCount is the number of matches still starting or playing.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}
