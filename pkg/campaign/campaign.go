// Package campaign contains the core domain types for the campaign monitor.
package campaign

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Campaign is one "coming soon" listing scraped from the campaign page.
// Campaigns are rebuilt from scratch on every run and never persisted as-is.
type Campaign struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	CountdownLabel    string     `json:"countdown_label"`
	Countdown         string     `json:"countdown"`
	Status            string     `json:"status"`
	StartAtUTC        *time.Time `json:"start_timestamp_utc,omitempty"`
	SecondsUntilStart *int64     `json:"seconds_until_start,omitempty"`
}

// ReminderRecord is one entry in the append-only reminder audit log.
type ReminderRecord struct {
	Key    string `json:"type"`
	SentAt string `json:"sent_at"`
}

// StateEntry is the persisted notification history for a single campaign.
// Timestamps are stored as RFC 3339 strings; a value that fails to parse is
// treated as unknown rather than as an error.
type StateEntry struct {
	Title             string           `json:"title"`
	FirstDetectedAt   string           `json:"first_detected_at"`
	LastSeenAt        string           `json:"last_seen_at"`
	StartTimestampUTC string           `json:"start_timestamp_utc,omitempty"`
	InitialNotified   bool             `json:"initial_notified"`
	InitialNotifiedAt string           `json:"initial_notified_at,omitempty"`
	RemindersSent     []string         `json:"reminders_sent"`
	ReminderHistory   []ReminderRecord `json:"reminder_history,omitempty"`
}

// State maps campaign ID to its notification history.
type State map[string]*StateEntry

// ReminderSent reports whether the reminder for key was already delivered.
func (e *StateEntry) ReminderSent(key string) bool {
	for _, k := range e.RemindersSent {
		if k == key {
			return true
		}
	}
	return false
}

// ID derives the stable campaign identity from title and description.
// Countdown and status are deliberately excluded: they change between runs
// while the campaign itself stays the same.
func ID(title, description string) string {
	digest := sha256.Sum256([]byte(title + "|" + description))
	return hex.EncodeToString(digest[:])
}
