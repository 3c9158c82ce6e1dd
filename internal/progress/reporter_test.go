package progress

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStripANSI(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "42.5%", want: "42.5%"},
		{name: "color code", in: "\x1b[0;94m 42.5%\x1b[0m", want: "42.5%"},
		{name: "cursor control", in: "\x1b[K1.20MiB/s", want: "1.20MiB/s"},
		{name: "empty", in: "", want: ""},
		{name: "whitespace trimmed", in: "  00:05 ", want: "00:05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, StripANSI(tt.in))
		})
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{name: "simple", in: "42.5%", want: 42.5},
		{name: "integer", in: "7%", want: 7},
		{name: "padded", in: "  99.9%", want: 99.9},
		{name: "garbage", in: "N/A", want: 0.0},
		{name: "empty", in: "", want: 0.0},
		{name: "no percent sign", in: "42.5", want: 0.0},
		{name: "embedded", in: "[download] 13.4% of 10MiB", want: 13.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ParsePercent(tt.in))
		})
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		name       string
		percent    float64
		wantFilled int
	}{
		{name: "zero", percent: 0, wantFilled: 0},
		{name: "half", percent: 50, wantFilled: 5},
		{name: "full", percent: 100, wantFilled: 10},
		{name: "overflow clamped", percent: 150, wantFilled: 10},
		{name: "negative clamped", percent: -5, wantFilled: 0},
		{name: "rounds down", percent: 19, wantFilled: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := RenderBar(tt.percent)
			require.Equal(t, tt.wantFilled, strings.Count(bar, "█"))
			require.Equal(t, barSegments-tt.wantFilled, strings.Count(bar, "░"))
		})
	}
}

func TestReporter_DebouncesDuplicateEvents(t *testing.T) {
	r := NewReporter("Audio", 1, nil)

	ev := Event{
		Status:          StatusDownloading,
		PercentStr:      "42.5%",
		SpeedStr:        "1.20MiB/s",
		ETAStr:          "00:05",
		DownloadedBytes: 4 << 20,
		TotalBytes:      10 << 20,
	}

	r.Observe(ev)
	r.Observe(ev) // within the debounce window, dropped silently

	text, ok := r.Consume()
	require.True(t, ok)
	require.Contains(t, text, "42.5%")

	_, ok = r.Consume()
	require.False(t, ok, "exactly one render published for duplicate events")
}

func TestReporter_RendersAgainAfterWindow(t *testing.T) {
	r := NewReporter("Audio", 1, nil)

	fake := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fake }

	r.Observe(Event{Status: StatusDownloading, PercentStr: "10%"})
	_, ok := r.Consume()
	require.True(t, ok)

	fake = fake.Add(renderInterval)
	r.Observe(Event{Status: StatusDownloading, PercentStr: "20%"})

	text, ok := r.Consume()
	require.True(t, ok)
	require.Contains(t, text, "20.0%")
}

func TestReporter_MailboxOverwrites(t *testing.T) {
	r := NewReporter("Video (720p)", 1, nil)

	fake := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fake }

	r.Observe(Event{Status: StatusDownloading, PercentStr: "10%"})
	fake = fake.Add(renderInterval)
	r.Observe(Event{Status: StatusDownloading, PercentStr: "30%"})

	// Only the newest render survives; the unread one is discarded.
	text, ok := r.Consume()
	require.True(t, ok)
	require.Contains(t, text, "30.0%")
	require.NotContains(t, text, "10.0%")
}

func TestReporter_MalformedPercent(t *testing.T) {
	r := NewReporter("Audio", 1, nil)

	r.Observe(Event{Status: StatusDownloading, PercentStr: "Unknown"})

	text, ok := r.Consume()
	require.True(t, ok)
	require.Contains(t, text, "0.0%")
	require.Contains(t, text, strings.Repeat("░", barSegments))
	require.NotContains(t, text, "█")
}

func TestReporter_IgnoresOtherStatuses(t *testing.T) {
	r := NewReporter("Audio", 1, nil)

	r.Observe(Event{Status: "error", PercentStr: "50%"})
	r.Observe(Event{Status: "", PercentStr: "50%"})

	_, ok := r.Consume()
	require.False(t, ok)
}

func TestReporter_FinishedRendersOnce(t *testing.T) {
	r := NewReporter("Video (1080p)", 1, nil)

	r.Observe(Event{Status: StatusDownloading, PercentStr: "97%"})
	_, ok := r.Consume()
	require.True(t, ok)

	// The finishing render lands even inside the debounce window.
	r.Observe(Event{Status: StatusFinished})
	text, ok := r.Consume()
	require.True(t, ok)
	require.Contains(t, text, "100.0%")
	require.Contains(t, text, strings.Repeat("█", barSegments))

	r.Observe(Event{Status: StatusFinished})
	_, ok = r.Consume()
	require.False(t, ok, "finishing render published once")
}

func TestReporter_UpdatesTracker(t *testing.T) {
	tracker := NewTracker()
	r := NewReporter("Audio", 77, tracker)

	r.Observe(Event{
		Status:          StatusDownloading,
		PercentStr:      "55%",
		SpeedStr:        "900KiB/s",
		ETAStr:          "00:12",
		DownloadedBytes: 5 << 20,
		TotalBytes:      10 << 20,
	})

	snap, ok := tracker.Get(77)
	require.True(t, ok)
	require.Equal(t, 55.0, snap.Percent)
	require.Equal(t, "900KiB/s", snap.Speed)
	require.Equal(t, "00:12", snap.ETA)
	require.Equal(t, "5.0MB / 10.0MB", snap.SizeInfo)

	tracker.Clear(77)
	_, ok = tracker.Get(77)
	require.False(t, ok)
}

func TestReporter_SnapshotClampsPercent(t *testing.T) {
	r := NewReporter("Audio", 1, nil)

	r.Observe(Event{Status: StatusDownloading, PercentStr: "150%"})
	require.Equal(t, 100.0, r.Snapshot().Percent)
}

func TestFormatSizeInfo(t *testing.T) {
	require.Equal(t, "4.0MB / 10.0MB", formatSizeInfo(4<<20, 10<<20))
	require.Equal(t, "4.0MB", formatSizeInfo(4<<20, 0))
}
