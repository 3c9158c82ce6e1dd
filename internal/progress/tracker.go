package progress

import "sync"

// Tracker maps chat ids to their latest progress snapshot so the status
// command can answer without touching the job. Entries live only while a
// job is active.
type Tracker struct {
	mu     sync.Mutex
	byChat map[int64]Snapshot
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byChat: make(map[int64]Snapshot),
	}
}

// Set stores the latest snapshot for a chat, replacing any previous one.
func (t *Tracker) Set(chatID int64, s Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byChat[chatID] = s
}

// Get returns the chat's latest snapshot, if a job published one.
func (t *Tracker) Get(chatID int64) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.byChat[chatID]
	return s, ok
}

// Clear drops the chat's snapshot when its job ends.
func (t *Tracker) Clear(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byChat, chatID)
}
