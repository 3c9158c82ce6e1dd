// Package bot implements the conversational front-end: commands, the
// quality menu, and the download flow around the job runner
package bot

import (
	"context"
	"log/slog"
	"sync"

	"tubefetch/internal/config"
	"tubefetch/internal/gate"
	"tubefetch/internal/ledger"
	"tubefetch/internal/progress"
	"tubefetch/internal/runner"
	"tubefetch/internal/ytdlp"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot routes chat updates to handlers and owns the per-chat pending URL
// state between the quality menu and the user's choice.
type Bot struct {
	api     *tgbotapi.BotAPI
	cfg     *config.Config
	gate    *gate.Gate
	tracker *progress.Tracker
	ledger  *ledger.Ledger
	engine  *ytdlp.Client
	runner  *runner.Runner
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[int64]string // chat id -> URL awaiting a quality choice
}

// New creates the front-end around an authenticated API client.
func New(api *tgbotapi.BotAPI, cfg *config.Config, g *gate.Gate, tracker *progress.Tracker, l *ledger.Ledger, engine *ytdlp.Client, r *runner.Runner) *Bot {
	return &Bot{
		api:     api,
		cfg:     cfg,
		gate:    g,
		tracker: tracker,
		ledger:  l,
		engine:  engine,
		runner:  r,
		logger:  slog.Default(),
		pending: make(map[int64]string),
	}
}

// Run long-polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("Bot shutting down")
			return
		case update := <-updates:
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		if url, ok := ExtractURL(update.Message.Text); ok {
			b.handleURL(ctx, update.Message, url)
		}
	}
}

// setPending stores the URL a chat is choosing a quality for,
// overwriting any earlier unanswered menu.
func (b *Bot) setPending(chatID int64, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[chatID] = url
}

// takePending removes and returns the chat's pending URL.
func (b *Bot) takePending(chatID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	url, ok := b.pending[chatID]
	if ok {
		delete(b.pending, chatID)
	}
	return url, ok
}

func (b *Bot) send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, err := b.api.Send(c)
	if err != nil {
		b.logger.Warn("Failed to send message", "error", err)
	}
	return msg, err
}

// reply sends a Markdown message to the chat, logging failures.
func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(msg) //nolint:errcheck
}

// edit replaces the text of an earlier status message.
func (b *Bot) edit(chatID int64, messageID int, text string) {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(msg) //nolint:errcheck
}

// editSink delivers rendered progress text by editing the chat's status
// message. Edit failures are logged and dropped; the next render will
// try again.
type editSink struct {
	bot       *Bot
	chatID    int64
	messageID int
}

func (s *editSink) PublishProgress(text string) {
	s.bot.edit(s.chatID, s.messageID, text)
}
