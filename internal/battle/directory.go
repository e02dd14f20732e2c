package battle

import (
	"sync"
	"time"
)

// PlayerHandle binds a logical player to their live connection.
type PlayerHandle struct {
	PlayerID     string
	ConnectionID string
	LastSeenAt   time.Time
}

// Directory maps players to connections and back. Handles are overwritten on
// reconnect and never pruned.
type Directory struct {
	mu       sync.RWMutex
	byPlayer map[string]PlayerHandle
	byConn   map[string]string
	now      func() time.Time
}

func NewDirectory() *Directory {
	return &Directory{
		byPlayer: make(map[string]PlayerHandle),
		byConn:   make(map[string]string),
		now:      time.Now,
	}
}

// Register binds connID to playerID and returns the connection it replaced, if any.
func (d *Directory) Register(playerID, connID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	// a connection re-registering as someone else drops its old binding
	if prevPlayer, ok := d.byConn[connID]; ok && prevPlayer != playerID {
		if h := d.byPlayer[prevPlayer]; h.ConnectionID == connID {
			h.ConnectionID = ""
			d.byPlayer[prevPlayer] = h
		}
	}

	previous := ""
	if h, ok := d.byPlayer[playerID]; ok && h.ConnectionID != connID {
		previous = h.ConnectionID
		delete(d.byConn, previous)
	}

	d.byPlayer[playerID] = PlayerHandle{PlayerID: playerID, ConnectionID: connID, LastSeenAt: d.now()}
	d.byConn[connID] = playerID
	return previous
}

// Lookup returns the player's current handle.
func (d *Directory) Lookup(playerID string) (PlayerHandle, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.byPlayer[playerID]
	return h, ok
}

// PlayerFor resolves the player bound to connID.
func (d *Directory) PlayerFor(connID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pid, ok := d.byConn[connID]
	return pid, ok
}

// Touch refreshes LastSeenAt for the player on connID.
func (d *Directory) Touch(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pid, ok := d.byConn[connID]; ok {
		h := d.byPlayer[pid]
		h.LastSeenAt = d.now()
		d.byPlayer[pid] = h
	}
}

// Release forgets connID. The player's handle stays, pointing at nothing
// until they register again.
func (d *Directory) Release(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pid, ok := d.byConn[connID]
	if !ok {
		return
	}
	delete(d.byConn, connID)
	if h := d.byPlayer[pid]; h.ConnectionID == connID {
		h.ConnectionID = ""
		d.byPlayer[pid] = h
	}
}
