// Package gate implements per-chat admission control for downloads
package gate

import "sync"

// Gate tracks which chats have a download in flight. Each chat holds at
// most one slot; a rejected request is not queued, the caller has to ask
// again once the slot is free.
type Gate struct {
	mu     sync.Mutex
	active map[int64]struct{}
}

// New creates an empty admission gate.
func New() *Gate {
	return &Gate{
		active: make(map[int64]struct{}),
	}
}

// TryAdmit marks the chat busy and returns true, unless the chat already
// holds a slot, in which case it returns false and changes nothing.
func (g *Gate) TryAdmit(chatID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[chatID]; busy {
		return false
	}
	g.active[chatID] = struct{}{}
	return true
}

// Release frees the chat's slot. Releasing an idle chat is a no-op.
func (g *Gate) Release(chatID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, chatID)
}

// Active reports whether the chat currently holds a slot.
func (g *Gate) Active(chatID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.active[chatID]
	return busy
}
