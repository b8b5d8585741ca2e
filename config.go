package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPageURL   = "https://www.binance.th/th/campaign/list?utm_source=footer&utm_medium=web&utm_campaign=list"
	defaultStatePath = "campaign_state.json"
)

// Config carries all environment-derived settings. Built once per run and
// passed into the components that need it; every field has a workable
// default or degrades to a logged no-op (missing Telegram credentials).
type Config struct {
	PageURL          string        // CAMPAIGN_URL
	TelegramBotToken string        // TELEGRAM_BOT_TOKEN
	TelegramChatID   string        // TELEGRAM_CHAT_ID
	StatePath        string        // CAMPAIGN_STATE_PATH
	StorageBucket    string        // STORAGE_BUCKET (state lives in GCS when set)
	RenderTimeout    time.Duration // RENDER_TIMEOUT
	MarkerWait       time.Duration // MARKER_WAIT
}

func loadConfig() *Config {
	_ = godotenv.Load() // best effort; system env vars win

	return &Config{
		PageURL:          getEnv("CAMPAIGN_URL", defaultPageURL),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		StatePath:        getEnv("CAMPAIGN_STATE_PATH", defaultStatePath),
		StorageBucket:    getEnv("STORAGE_BUCKET", ""),
		RenderTimeout:    getDurationEnv("RENDER_TIMEOUT", "90s"),
		MarkerWait:       getDurationEnv("MARKER_WAIT", "3s"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	d, _ := time.ParseDuration(defaultValue)
	return d
}
