// Package progress bridges the extraction engine's synchronous progress
// callbacks into rendered status text for the chat front-end
package progress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Engine status tags carried on progress events.
const (
	StatusDownloading = "downloading"
	StatusFinished    = "finished"
)

const (
	// renderInterval debounces rendering so message edits stay well under
	// the chat platform's rate limits. Events inside the window are dropped.
	renderInterval = 2 * time.Second

	barSegments = 10
)

var (
	ansiRe    = regexp.MustCompile(`\x1b(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)
	percentRe = regexp.MustCompile(`(\d+\.?\d*)%`)
)

// Event is one raw progress callback from the extraction engine. The
// percent, speed and eta fields are pre-formatted display strings that
// may carry terminal color codes.
type Event struct {
	Status          string
	PercentStr      string
	SpeedStr        string
	ETAStr          string
	DownloadedBytes int64
	TotalBytes      int64
}

// Snapshot holds the latest parsed progress fields for one active chat.
type Snapshot struct {
	Percent  float64
	Speed    string
	ETA      string
	SizeInfo string
}

// Reporter receives engine events synchronously from the extraction
// goroutine, renders them at a bounded rate, and publishes the newest
// render into a single-slot mailbox. An unread render is overwritten by
// the next one; missed renders are lost by design, never queued.
type Reporter struct {
	label   string
	chatID  int64
	tracker *Tracker

	now func() time.Time

	mu         sync.Mutex
	lastRender time.Time
	text       string
	fresh      bool
	finished   bool
	snapshot   Snapshot
}

// NewReporter creates a reporter for one job. label names the media kind
// in the rendered header, e.g. "Audio" or "Video (720p)". tracker may be
// nil when no status queries are needed.
func NewReporter(label string, chatID int64, tracker *Tracker) *Reporter {
	return &Reporter{
		label:   label,
		chatID:  chatID,
		tracker: tracker,
		now:     time.Now,
	}
}

// Observe handles one raw engine event. It is safe to call from a
// different goroutine than the one consuming renders.
func (r *Reporter) Observe(ev Event) {
	switch ev.Status {
	case StatusDownloading:
		r.observeDownloading(ev)
	case StatusFinished:
		r.observeFinished()
	default:
		// Other statuses carry nothing worth rendering.
	}
}

func (r *Reporter) observeDownloading(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !r.lastRender.IsZero() && now.Sub(r.lastRender) < renderInterval {
		return
	}
	r.lastRender = now

	percent := ParsePercent(StripANSI(ev.PercentStr))
	speed := StripANSI(ev.SpeedStr)
	eta := StripANSI(ev.ETAStr)
	if speed == "" {
		speed = "N/A"
	}
	if eta == "" {
		eta = "N/A"
	}
	sizeInfo := formatSizeInfo(ev.DownloadedBytes, ev.TotalBytes)

	r.snapshot = Snapshot{
		Percent:  clampPercent(percent),
		Speed:    speed,
		ETA:      eta,
		SizeInfo: sizeInfo,
	}
	r.text = fmt.Sprintf(
		"⬇️ *Downloading %s*\n\n"+
			"📊 *Progress:* %.1f%%\n"+
			"📦 *Size:* %s\n"+
			"⚡ *Speed:* %s\n"+
			"⏱ *ETA:* %s\n\n"+
			"%s",
		r.label, percent, sizeInfo, speed, eta, RenderBar(percent),
	)
	r.fresh = true

	if r.tracker != nil {
		r.tracker.Set(r.chatID, r.snapshot)
	}
}

// observeFinished publishes a single full-bar render so the visible
// progress does not freeze below 100% while the engine merges or
// transcodes the result.
func (r *Reporter) observeFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return
	}
	r.finished = true

	r.snapshot.Percent = 100
	r.text = fmt.Sprintf(
		"🛠 *Processing %s*\n\n"+
			"📊 *Progress:* 100.0%%\n"+
			"Finalizing the file...\n\n"+
			"%s",
		r.label, RenderBar(100),
	)
	r.fresh = true

	if r.tracker != nil {
		r.tracker.Set(r.chatID, r.snapshot)
	}
}

// Consume returns the latest unread render and clears the mailbox. The
// second value is false when nothing new was published since the last
// call.
func (r *Reporter) Consume() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.fresh {
		return "", false
	}
	r.fresh = false
	return r.text, true
}

// Snapshot returns the most recently parsed progress fields.
func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// StripANSI removes terminal escape sequences from a display string.
func StripANSI(s string) string {
	return strings.TrimSpace(ansiRe.ReplaceAllString(s, ""))
}

// ParsePercent extracts a numeric percentage from a pre-formatted display
// string such as " 42.5%". Unparsable input yields 0.0 rather than an
// error; the upstream field is cosmetic and not to be trusted.
func ParsePercent(s string) float64 {
	m := percentRe.FindStringSubmatch(s)
	if m == nil {
		return 0.0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0.0
	}
	return v
}

// RenderBar renders a fixed-width progress bar. The filled segment count
// is clamped to [0, barSegments] for any out-of-range percent.
func RenderBar(percent float64) string {
	filled := int(percent / 100 * barSegments)
	if filled < 0 {
		filled = 0
	}
	if filled > barSegments {
		filled = barSegments
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barSegments-filled)
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func formatSizeInfo(downloaded, total int64) string {
	const mb = 1024 * 1024
	if total > 0 {
		return fmt.Sprintf("%.1fMB / %.1fMB", float64(downloaded)/mb, float64(total)/mb)
	}
	return fmt.Sprintf("%.1fMB", float64(downloaded)/mb)
}
