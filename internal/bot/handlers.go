package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tubefetch/internal/progress"
	"tubefetch/internal/runner"
	"tubefetch/internal/ytdlp"
	"tubefetch/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const metadataTimeout = time.Minute

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.reply(chatID, welcomeText)
	case "help":
		b.reply(chatID, helpText)
	case "download":
		url, ok := ExtractURL(msg.CommandArguments())
		if !ok {
			b.reply(chatID, "Usage: /download <YouTube URL>")
			return
		}
		b.handleURL(ctx, msg, url)
	case "audio":
		url, ok := ExtractURL(msg.CommandArguments())
		if !ok {
			b.reply(chatID, "Usage: /audio <YouTube URL>")
			return
		}
		b.handleAudio(ctx, msg, url)
	case "status":
		b.handleStatus(chatID)
	case "stats":
		entry, ok := b.ledger.Get(msg.From.ID)
		b.reply(chatID, formatStats(entry, ok))
	case "leaderboard":
		b.handleLeaderboard(chatID, msg.From.ID)
	case "vip":
		b.handleVIP(chatID, msg.From.ID)
	default:
		b.reply(chatID, "Unknown command. Try /help.")
	}
}

func (b *Bot) handleStatus(chatID int64) {
	if !b.gate.Active(chatID) {
		b.reply(chatID, "💤 No active download in this chat.")
		return
	}
	snap, ok := b.tracker.Get(chatID)
	b.reply(chatID, formatStatus(snap, ok))
}

func (b *Bot) handleLeaderboard(chatID, userID int64) {
	ranked := b.ledger.TopN(leaderboardLimit)
	rank, haveRank := b.ledger.Rank(userID)
	b.reply(chatID, formatLeaderboard(ranked, rank, haveRank))
}

func (b *Bot) handleVIP(chatID, userID int64) {
	if b.cfg.IsAdmin(userID) {
		b.reply(chatID, "⭐ You are a VIP: no duration limit applies to you.")
		return
	}
	b.reply(chatID, fmt.Sprintf(
		"Regular account.\n\n⏱ Max duration: %d minutes\n📦 Max file size: %d MB",
		b.cfg.MaxDurationMinutes, b.cfg.MaxFileSizeMB,
	))
}

// handleURL validates the source and presents the quality menu. Policy
// rejections happen here, before any job exists.
func (b *Bot) handleURL(ctx context.Context, msg *tgbotapi.Message, url string) {
	chatID := msg.Chat.ID

	if b.gate.Active(chatID) {
		b.reply(chatID, "⏳ A download is already running in this chat. Wait for it to finish.")
		return
	}

	probe := tgbotapi.NewMessage(chatID, "🔍 Fetching video info...")
	sent, err := b.send(probe)
	if err != nil {
		return
	}

	meta, ok := b.probeSource(ctx, chatID, msg.From.ID, sent.MessageID, url)
	if !ok {
		return
	}

	pendingURL := meta.URL
	if pendingURL == "" {
		pendingURL = url
	}
	b.setPending(chatID, pendingURL)

	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, sent.MessageID, formatMetadataPrompt(meta), qualityKeyboard())
	edit.ParseMode = tgbotapi.ModeMarkdown
	b.send(edit) //nolint:errcheck
}

// handleAudio skips the quality menu and goes straight to an mp3 job.
func (b *Bot) handleAudio(ctx context.Context, msg *tgbotapi.Message, url string) {
	chatID := msg.Chat.ID

	if b.gate.Active(chatID) {
		b.reply(chatID, "⏳ A download is already running in this chat. Wait for it to finish.")
		return
	}

	probe := tgbotapi.NewMessage(chatID, "🔍 Fetching video info...")
	sent, err := b.send(probe)
	if err != nil {
		return
	}

	meta, ok := b.probeSource(ctx, chatID, msg.From.ID, sent.MessageID, url)
	if !ok {
		return
	}

	if !b.gate.TryAdmit(chatID) {
		b.edit(chatID, sent.MessageID, "⏳ A download is already running in this chat.")
		return
	}

	jobURL := meta.URL
	if jobURL == "" {
		jobURL = url
	}

	b.edit(chatID, sent.MessageID, "⬇️ Starting audio download...")

	go b.runJob(ctx, jobParams{
		chatID:    chatID,
		messageID: sent.MessageID,
		userID:    msg.From.ID,
		username:  displayName(msg.From),
		url:       jobURL,
		mode:      ytdlp.ModeAudio,
	})
}

// probeSource fetches metadata and applies the duration policy, editing
// the status message on rejection. Returns false when the flow must stop.
func (b *Bot) probeSource(ctx context.Context, chatID, userID int64, messageID int, url string) (*ytdlp.Metadata, bool) {
	metaCtx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	meta, err := b.engine.FetchMetadata(metaCtx, url)
	if err != nil {
		b.logger.Warn("Metadata fetch failed", "url", url, "error", err)
		b.edit(chatID, messageID, extractionErrorText(err))
		return nil, false
	}

	if !b.cfg.IsAdmin(userID) {
		maxSeconds := float64(b.cfg.MaxDurationMinutes * 60)
		if meta.Duration > maxSeconds {
			b.edit(chatID, messageID, fmt.Sprintf(
				"❌ Video is too long: %s (limit %d minutes).",
				FormatDuration(meta.Duration), b.cfg.MaxDurationMinutes,
			))
			return nil, false
		}
	}

	return meta, true
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Acknowledge first so the client stops its spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("Failed to answer callback", "error", err)
	}

	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	mode, quality, ok := ParseChoice(cb.Data)
	if !ok {
		b.logger.Warn("Unrecognized callback data", "data", cb.Data)
		return
	}

	url, ok := b.takePending(chatID)
	if !ok {
		b.edit(chatID, cb.Message.MessageID, "⌛ That menu expired. Send the link again.")
		return
	}

	if !b.gate.TryAdmit(chatID) {
		b.edit(chatID, cb.Message.MessageID, "⏳ A download is already running in this chat.")
		return
	}

	b.edit(chatID, cb.Message.MessageID, fmt.Sprintf("⬇️ Starting %s download...", strings.ToLower(jobLabel(mode, quality))))

	go b.runJob(ctx, jobParams{
		chatID:    chatID,
		messageID: cb.Message.MessageID,
		userID:    cb.From.ID,
		username:  displayName(cb.From),
		url:       url,
		mode:      mode,
		quality:   quality,
	})
}

type jobParams struct {
	chatID    int64
	messageID int
	userID    int64
	username  string
	url       string
	mode      ytdlp.Mode
	quality   string
}

// runJob drives one admitted download end to end. The gate slot and the
// tracker entry are always released, whatever the outcome.
func (b *Bot) runJob(ctx context.Context, p jobParams) {
	defer b.gate.Release(p.chatID)
	defer b.tracker.Clear(p.chatID)

	label := jobLabel(p.mode, p.quality)
	reporter := progress.NewReporter(label, p.chatID, b.tracker)
	sink := &editSink{bot: b, chatID: p.chatID, messageID: p.messageID}

	opts := ytdlp.Options{
		URL:     p.url,
		Mode:    p.mode,
		Quality: p.quality,
		Dir:     b.cfg.DownloadDir,
		JobID:   uuid.NewString(),
	}

	b.logger.Info("Starting download", "chat_id", p.chatID, "url", p.url, "mode", p.mode, "quality", p.quality)

	res, err := b.runner.Run(ctx, runner.Request{Options: opts, Reporter: reporter, Sink: sink})
	if err != nil {
		b.logger.Error("Download failed", "chat_id", p.chatID, "url", p.url, "error", err)
		b.removePartials(opts.Dir, opts.JobID)
		b.edit(p.chatID, p.messageID, extractionErrorText(err))
		return
	}
	defer b.removeArtifact(res.FilePath)

	info, err := os.Stat(res.FilePath)
	if err != nil {
		b.logger.Error("Artifact missing after download", "path", res.FilePath, "error", err)
		b.edit(p.chatID, p.messageID, "❌ Download failed: the file could not be located.")
		return
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)

	if sizeMB > float64(b.cfg.MaxFileSizeMB) {
		b.edit(p.chatID, p.messageID, fmt.Sprintf(
			"❌ File too large to deliver: %.1f MB (limit %d MB). Try a lower quality.",
			sizeMB, b.cfg.MaxFileSizeMB,
		))
		return
	}

	b.edit(p.chatID, p.messageID, fmt.Sprintf("📤 Uploading *%s*...", escapeMD(truncate(res.Title, 60))))

	if err := b.upload(p.chatID, p.mode, res); err != nil {
		b.logger.Error("Upload failed", "chat_id", p.chatID, "path", res.FilePath, "error", err)
		b.edit(p.chatID, p.messageID, "❌ Upload failed. Try again later.")
		return
	}

	entry := b.ledger.RecordEvent(p.userID, p.username, res.Title, p.url, sizeMB)

	b.edit(p.chatID, p.messageID, formatCompletion(res.Title, models.RoundSizeMB(sizeMB), entry))
	b.logger.Info("Download delivered", "chat_id", p.chatID, "title", res.Title, "size_mb", sizeMB)
}

func (b *Bot) upload(chatID int64, mode ytdlp.Mode, res *ytdlp.Result) error {
	file := tgbotapi.FilePath(res.FilePath)

	if mode == ytdlp.ModeAudio {
		audio := tgbotapi.NewAudio(chatID, file)
		audio.Title = res.Title
		_, err := b.api.Send(audio)
		return err
	}

	video := tgbotapi.NewVideo(chatID, file)
	video.Caption = truncate(res.Title, 200)
	video.SupportsStreaming = true
	_, err := b.api.Send(video)
	return err
}

func (b *Bot) removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		b.logger.Warn("Failed to remove artifact", "path", path, "error", err)
	}
}

// removePartials discards whatever a failed job left in the staging
// directory (.part files, unmerged fragments). Best effort.
func (b *Bot) removePartials(dir, jobID string) {
	matches, err := filepath.Glob(filepath.Join(dir, jobID+"_*"))
	if err != nil {
		b.logger.Warn("Failed to search for partial artifacts", "job_id", jobID, "error", err)
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			b.logger.Warn("Failed to remove partial artifact", "path", path, "error", err)
		}
	}
}

func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}
