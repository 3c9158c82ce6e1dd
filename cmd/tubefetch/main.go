package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tubefetch/internal/bot"
	"tubefetch/internal/cleanup"
	"tubefetch/internal/config"
	"tubefetch/internal/gate"
	"tubefetch/internal/ledger"
	"tubefetch/internal/progress"
	"tubefetch/internal/runner"
	"tubefetch/internal/ytdlp"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup structured logging
	setupLogging(cfg.LogLevel)

	slog.Info("Starting tubefetch", "version", "1.0.0")

	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	// Initialize extraction engine client
	engine := ytdlp.New()

	// Verify yt-dlp is available (warn but don't exit; it may appear on PATH later)
	if err := engine.CheckBinary(); err != nil {
		slog.Warn("yt-dlp binary check failed - continuing anyway", "error", err)
		slog.Warn("Downloads will fail until yt-dlp is installed and on PATH")
	} else {
		slog.Info("yt-dlp binary found")
	}

	// Load the usage ledger (missing file starts empty)
	usage := ledger.Load(cfg.LedgerPath)
	slog.Info("Usage ledger loaded", "path", cfg.LedgerPath, "users", usage.Size())

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("failed to authenticate bot: %w", err)
	}

	admissionGate := gate.New()
	tracker := progress.NewTracker()
	jobRunner := runner.New(engine)

	frontend := bot.New(api, cfg, admissionGate, tracker, usage, engine, jobRunner)
	sweeper := cleanup.NewService(cfg.DownloadDir)

	return runBot(frontend, jobRunner, sweeper)
}

func runBot(frontend *bot.Bot, jobRunner *runner.Runner, sweeper *cleanup.Service) error {
	// Create main context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the single extraction worker
	go jobRunner.Start(ctx)

	// Sweep crash-orphaned artifacts on startup and periodically
	go sweeper.Run(ctx)

	// Start the update loop in a goroutine
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		frontend.Run(ctx)
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	slog.Info("Received shutdown signal", "signal", sig.String())

	// Cancel context to stop the worker and the update loop
	cancel()
	<-botDone

	slog.Info("Shutdown complete")
	return nil
}

// setupLogging configures structured logging based on the log level
func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}
