// Package main implements a single-shot job that checks a campaign listing
// page for "coming soon" promotions and notifies a Telegram chat about new
// campaigns and approaching start times. It is meant to be invoked by an
// external scheduler; each invocation does one fetch-reconcile-notify pass,
// prints a JSON summary line to stdout, and exits.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"campaign-notifier/notify"
	"campaign-notifier/reconcile"
	"campaign-notifier/scraper"
	"campaign-notifier/storage"

	gcs "cloud.google.com/go/storage"
)

const timestampFormat = "2006-01-02 15:04:05 MST"

// runSummary is the one machine-readable line each run prints to stdout.
type runSummary struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
	Length    int    `json:"length,omitempty"`
	Error     string `json:"error,omitempty"`
}

func main() {
	ctx := context.Background()

	// Structured logs go to stderr so stdout carries only the summary line.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	provider := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, logger)
	sender := notify.NewSender(provider, cfg.PageURL, logger)

	if err := run(ctx, cfg, sender, logger); err != nil {
		logger.Error("Run failed", "error", err)
		if notifyErr := sender.SendError(ctx, err, time.Now()); notifyErr != nil {
			logger.Warn("Error notification not delivered", "error", notifyErr)
		}
		printSummary(runSummary{Status: "ERROR", Error: err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, sender *notify.Sender, logger *slog.Logger) error {
	var gcsClient *gcs.Client
	if cfg.StorageBucket != "" {
		var err error
		gcsClient, err = gcs.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init storage client: %w", err)
		}
		defer func() {
			if closeErr := gcsClient.Close(); closeErr != nil {
				logger.Warn("Failed to close storage client", "error", closeErr)
			}
		}()
	}
	store := storage.New(gcsClient, cfg.StorageBucket, cfg.StatePath, logger)

	renderer := scraper.NewHTTPRenderer(&http.Client{Timeout: cfg.RenderTimeout}, cfg.MarkerWait, logger)
	html, err := renderer.Render(ctx, cfg.PageURL)
	if err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	fetchedAt := time.Now().UTC()

	status := "NOT_FOUND"
	if scraper.ContainsMarker(html) {
		status = "FOUND"

		campaigns, err := scraper.Extract(html, fetchedAt)
		if err != nil {
			return fmt.Errorf("parse page: %w", err)
		}

		for i, c := range campaigns {
			logger.Info("Campaign found",
				"index", i+1,
				"title", c.Title,
				"countdown_label", c.CountdownLabel,
				"countdown", c.Countdown,
				"status", c.Status)
		}

		rec := reconcile.New(store, sender, logger)
		outcome, err := rec.Run(ctx, campaigns, fetchedAt)
		if err != nil {
			return err
		}

		if !outcome.Any() {
			logger.Info("Campaigns already notified, sending status heartbeat", "campaign_count", len(campaigns))
			if err := sender.SendHeartbeat(ctx, campaigns); err != nil {
				logger.Warn("Heartbeat not delivered", "error", err)
			}
		}
	} else {
		logger.Info("No coming-soon marker on page", "marker", scraper.Marker, "page_length", len(html))
	}

	printSummary(runSummary{
		Status:    status,
		Timestamp: fetchedAt.Local().Format(timestampFormat),
		Length:    len(html),
	})
	return nil
}

func printSummary(s runSummary) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	fmt.Println(string(data))
}
