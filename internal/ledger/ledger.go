// Package ledger persists per-user download statistics as a single JSON
// document on disk
package ledger

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"tubefetch/pkg/models"

	"github.com/goccy/go-json"
)

// Ledger owns the usage document: a mapping from user id string to entry.
// It is the sole source of truth for usage statistics. Every mutation is
// applied in memory and then the whole document is rewritten; this is a
// single-process store with no cross-process locking.
type Ledger struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*models.Entry
	now     func() time.Time
}

// RankedEntry pairs a user id with its entry for leaderboard queries.
type RankedEntry struct {
	UserID string
	Entry  *models.Entry
}

// Load opens the ledger at path. A missing or unreadable document is
// treated as "no users yet" rather than a hard error.
func Load(path string) *Ledger {
	l := &Ledger{
		path:    path,
		logger:  slog.Default(),
		entries: make(map[string]*models.Entry),
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("Failed to read ledger, starting empty", "path", path, "error", err)
		}
		return l
	}

	if err := json.Unmarshal(data, &l.entries); err != nil {
		l.logger.Warn("Failed to parse ledger, starting empty", "path", path, "error", err)
		l.entries = make(map[string]*models.Entry)
	}
	return l
}

// RecordEvent applies one download event for the user, persists the whole
// document, and returns a snapshot of the post-update entry. Persistence
// failures are logged and swallowed: a ledger failure must never abort an
// otherwise successful download.
func (l *Ledger) RecordEvent(userID int64, username, title, url string, sizeMB float64) *models.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := strconv.FormatInt(userID, 10)

	entry, ok := l.entries[key]
	if !ok {
		entry = &models.Entry{FirstDownload: now}
		l.entries[key] = entry
	}
	entry.Record(username, title, url, sizeMB, now)

	if err := l.persist(); err != nil {
		l.logger.Error("Failed to persist ledger", "path", l.path, "error", err)
	}

	snapshot := *entry
	snapshot.Downloads = append([]models.DownloadRecord(nil), entry.Downloads...)
	return &snapshot
}

// Get returns a copy of the user's entry, if any.
func (l *Ledger) Get(userID int64) (*models.Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[strconv.FormatInt(userID, 10)]
	if !ok {
		return nil, false
	}
	snapshot := *entry
	snapshot.Downloads = append([]models.DownloadRecord(nil), entry.Downloads...)
	return &snapshot, true
}

// TopN returns up to n users ordered by total downloads descending. Ties
// are broken deterministically: earlier first download wins, then the
// smaller user id.
func (l *Ledger) TopN(n int) []RankedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	ranked := l.rankedLocked()
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Rank returns the user's 1-based leaderboard position.
func (l *Ledger) Rank(userID int64) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strconv.FormatInt(userID, 10)
	for i, r := range l.rankedLocked() {
		if r.UserID == key {
			return i + 1, true
		}
	}
	return 0, false
}

// Size returns the number of users in the document.
func (l *Ledger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// rankedLocked returns snapshot copies, never aliases into the store:
// callers hold the result after the lock is gone while RecordEvent keeps
// mutating the live entries.
func (l *Ledger) rankedLocked() []RankedEntry {
	ranked := make([]RankedEntry, 0, len(l.entries))
	for id, e := range l.entries {
		snapshot := *e
		snapshot.Downloads = append([]models.DownloadRecord(nil), e.Downloads...)
		ranked = append(ranked, RankedEntry{UserID: id, Entry: &snapshot})
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i].Entry, ranked[j].Entry
		if a.TotalDownloads != b.TotalDownloads {
			return a.TotalDownloads > b.TotalDownloads
		}
		if !a.FirstDownload.Equal(b.FirstDownload) {
			return a.FirstDownload.Before(b.FirstDownload)
		}
		return ranked[i].UserID < ranked[j].UserID
	})
	return ranked
}

// persist rewrites the whole document atomically: encode, write to a
// temp file, fsync, rename over the old document.
func (l *Ledger) persist() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	tmp := l.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp ledger: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close ledger: %w", err)
	}

	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}
