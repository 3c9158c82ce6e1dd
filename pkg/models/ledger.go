// Package models defines the data structures used throughout the application
package models

import (
	"math"
	"time"
)

// MaxHistory is the number of download records kept per user. Older
// records are evicted oldest-first; the aggregate counters keep growing.
const MaxHistory = 50

// DownloadRecord is one recorded download event. Titles are stored in
// full; any truncation happens at presentation time.
type DownloadRecord struct {
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	FileSizeMB   float64   `json:"file_size_mb"`
	DownloadDate time.Time `json:"download_date"`
}

// Entry aggregates the download statistics for a single user.
type Entry struct {
	Username       string           `json:"username"`
	TotalDownloads int              `json:"total_downloads"`
	TotalSizeMB    float64          `json:"total_size_mb"`
	FirstDownload  time.Time        `json:"first_download"`
	LastDownload   time.Time        `json:"last_download"`
	Downloads      []DownloadRecord `json:"downloads"`
}

// Record applies one download event to the entry: the username follows
// the latest event, counters grow monotonically, and the history is
// trimmed to the most recent MaxHistory records.
func (e *Entry) Record(username, title, url string, sizeMB float64, now time.Time) {
	e.Username = username
	e.TotalDownloads++
	e.TotalSizeMB += sizeMB
	e.LastDownload = now

	e.Downloads = append(e.Downloads, DownloadRecord{
		Title:        title,
		URL:          url,
		FileSizeMB:   RoundSizeMB(sizeMB),
		DownloadDate: now,
	})

	if len(e.Downloads) > MaxHistory {
		e.Downloads = e.Downloads[len(e.Downloads)-MaxHistory:]
	}
}

// RoundSizeMB rounds a megabyte size to two decimals for storage.
func RoundSizeMB(sizeMB float64) float64 {
	return math.Round(sizeMB*100) / 100
}
