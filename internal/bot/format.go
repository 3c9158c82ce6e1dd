package bot

import (
	"fmt"
	"regexp"
	"strings"

	"tubefetch/internal/ledger"
	"tubefetch/internal/progress"
	"tubefetch/internal/ytdlp"
	"tubefetch/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	welcomeText = "👋 *Welcome!*\n\n" +
		"Send me a YouTube link and I'll fetch it for you as video or audio.\n\n" +
		"Use /help to see everything I can do."

	helpText = "*Commands*\n\n" +
		"/download <url> — download a video\n" +
		"/audio <url> — extract the audio as mp3\n" +
		"/status — progress of your current download\n" +
		"/stats — your download statistics\n" +
		"/leaderboard — top downloaders\n" +
		"/vip — your privileges and the configured limits\n\n" +
		"You can also just paste a YouTube link."

	// Extraction failures can carry pages of engine output; cap what we
	// show the user.
	maxErrorLen = 200

	recentShown      = 5
	leaderboardLimit = 10
)

var urlRe = regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.|m\.)?(?:youtube\.com/(?:watch\?\S+|shorts/\S+)|youtu\.be/\S+)`)

// ExtractURL returns the first YouTube URL in the text, normalized to an
// https scheme.
func ExtractURL(text string) (string, bool) {
	m := urlRe.FindString(text)
	if m == "" {
		return "", false
	}
	if !strings.HasPrefix(m, "http") {
		m = "https://" + m
	}
	return m, true
}

// ChoiceData encodes a quality-menu choice as callback data. The pending
// URL stays server-side; callback data is limited to 64 bytes.
func ChoiceData(mode ytdlp.Mode, quality string) string {
	if mode == ytdlp.ModeAudio {
		return "audio"
	}
	return "video:" + quality
}

// ParseChoice decodes quality-menu callback data.
func ParseChoice(data string) (ytdlp.Mode, string, bool) {
	if data == "audio" {
		return ytdlp.ModeAudio, "", true
	}
	quality, ok := strings.CutPrefix(data, "video:")
	if !ok || quality == "" {
		return "", "", false
	}
	return ytdlp.ModeVideo, quality, true
}

func qualityKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎬 480p", ChoiceData(ytdlp.ModeVideo, ytdlp.Quality480)),
			tgbotapi.NewInlineKeyboardButtonData("🎬 720p", ChoiceData(ytdlp.ModeVideo, ytdlp.Quality720)),
			tgbotapi.NewInlineKeyboardButtonData("🎬 1080p", ChoiceData(ytdlp.ModeVideo, ytdlp.Quality1080)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎵 Audio (MP3)", ChoiceData(ytdlp.ModeAudio, "")),
		),
	)
}

// jobLabel names the media kind in progress renders.
func jobLabel(mode ytdlp.Mode, quality string) string {
	if mode == ytdlp.ModeAudio {
		return "Audio"
	}
	return fmt.Sprintf("Video (%s)", quality)
}

// FormatDuration renders a duration in seconds as MM:SS, or HH:MM:SS for
// sources of an hour or longer.
func FormatDuration(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := total % 3600 / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func escapeMD(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func formatMetadataPrompt(meta *ytdlp.Metadata) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎬 *%s*\n", escapeMD(meta.Title))
	if meta.Uploader != "" {
		fmt.Fprintf(&sb, "👤 %s\n", escapeMD(meta.Uploader))
	}
	if meta.Duration > 0 {
		fmt.Fprintf(&sb, "⏱ %s\n", FormatDuration(meta.Duration))
	}
	sb.WriteString("\nChoose a format:")
	return sb.String()
}

func formatStats(entry *models.Entry, ok bool) string {
	if !ok {
		return "📊 No downloads yet. Send me a link to get started!"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 *Your stats*\n\n")
	fmt.Fprintf(&sb, "⬇️ Downloads: %d\n", entry.TotalDownloads)
	fmt.Fprintf(&sb, "📦 Total size: %.2f MB\n", entry.TotalSizeMB)
	fmt.Fprintf(&sb, "📅 First download: %s\n", entry.FirstDownload.Format("2006-01-02"))

	recent := entry.Downloads
	if len(recent) > recentShown {
		recent = recent[len(recent)-recentShown:]
	}
	if len(recent) > 0 {
		sb.WriteString("\n*Recent:*\n")
		for i := len(recent) - 1; i >= 0; i-- {
			r := recent[i]
			fmt.Fprintf(&sb, "• %s (%.2f MB)\n", escapeMD(truncate(r.Title, 40)), r.FileSizeMB)
		}
	}
	return sb.String()
}

func formatLeaderboard(ranked []ledger.RankedEntry, requesterRank int, haveRank bool) string {
	if len(ranked) == 0 {
		return "🏆 The leaderboard is empty. Be the first!"
	}

	medals := []string{"🥇", "🥈", "🥉"}

	var sb strings.Builder
	sb.WriteString("🏆 *Leaderboard*\n\n")
	for i, r := range ranked {
		marker := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			marker = medals[i]
		}
		name := r.Entry.Username
		if name == "" {
			name = "user " + r.UserID
		}
		fmt.Fprintf(&sb, "%s %s — %d downloads (%.1f MB)\n",
			marker, escapeMD(name), r.Entry.TotalDownloads, r.Entry.TotalSizeMB)
	}
	if haveRank && requesterRank > len(ranked) {
		fmt.Fprintf(&sb, "\nYour rank: #%d", requesterRank)
	}
	return sb.String()
}

func formatStatus(snap progress.Snapshot, haveSnapshot bool) string {
	if !haveSnapshot {
		return "⏳ Your download is queued, no progress yet."
	}
	return fmt.Sprintf(
		"📥 *Download in progress*\n\n"+
			"📊 %.1f%%\n📦 %s\n⚡ %s\n⏱ %s\n\n%s",
		snap.Percent, snap.SizeInfo, snap.Speed, snap.ETA,
		progress.RenderBar(snap.Percent),
	)
}

func formatCompletion(title string, sizeMB float64, entry *models.Entry) string {
	return fmt.Sprintf(
		"✅ *Download complete!*\n\n"+
			"🎬 %s\n📦 %.2f MB\n\n"+
			"📊 Your totals: %d downloads, %.2f MB",
		escapeMD(truncate(title, 60)), sizeMB,
		entry.TotalDownloads, entry.TotalSizeMB,
	)
}

// extractionErrorText turns an engine failure into user-facing text,
// truncated so a page of stderr never lands in the chat.
func extractionErrorText(err error) string {
	return fmt.Sprintf("❌ Download failed: %s", truncate(err.Error(), maxErrorLen))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
