// Package reconcile decides which notifications a run owes and records what
// was actually delivered.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"campaign-notifier/pkg/campaign"
	"campaign-notifier/storage"
)

// Threshold is a named duration-before-start at which a one-time reminder
// becomes due.
type Threshold struct {
	Key    string
	Within time.Duration
}

// DefaultThresholds are scanned in ascending order; each key fires at most
// once per campaign.
var DefaultThresholds = []Threshold{
	{Key: "1m", Within: time.Minute},
	{Key: "5m", Within: 5 * time.Minute},
	{Key: "15m", Within: 15 * time.Minute},
	{Key: "1h", Within: time.Hour},
}

// Store interface for state persistence.
type Store interface {
	Load(ctx context.Context) (campaign.State, error)
	Save(ctx context.Context, state campaign.State) error
}

// Notifier interface for sending notifications.
type Notifier interface {
	SendNewCampaigns(ctx context.Context, campaigns []*campaign.Campaign, fetchedAt time.Time) error
	SendReminder(ctx context.Context, c *campaign.Campaign, timeLeft time.Duration, thresholdKey string) error
}

// Outcome reports what a reconciliation pass actually delivered.
type Outcome struct {
	InitialSent  bool
	ReminderSent bool
}

// Any reports whether the run delivered anything at all.
func (o Outcome) Any() bool {
	return o.InitialSent || o.ReminderSent
}

// Reconciler compares scraped campaigns against persisted notification
// history and drives the announcement and reminder sends.
type Reconciler struct {
	store      Store
	notifier   Notifier
	logger     *slog.Logger
	thresholds []Threshold
}

// New creates a reconciler with the default reminder thresholds.
func New(store Store, notifier Notifier, logger *slog.Logger) *Reconciler {
	return NewWithThresholds(store, notifier, DefaultThresholds, logger)
}

// NewWithThresholds creates a reconciler with a custom threshold set. The
// set is copied and kept sorted ascending by duration.
func NewWithThresholds(store Store, notifier Notifier, thresholds []Threshold, logger *slog.Logger) *Reconciler {
	sorted := make([]Threshold, len(thresholds))
	copy(sorted, thresholds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Within < sorted[j].Within })

	return &Reconciler{
		store:      store,
		notifier:   notifier,
		logger:     logger,
		thresholds: sorted,
	}
}

// reminderDue pairs a campaign with the one threshold it owes this run.
type reminderDue struct {
	campaign *campaign.Campaign
	timeLeft time.Duration
	key      string
}

// Run executes one reconciliation pass: load state, refresh entries for
// every sighted campaign, send the owed notifications, then prune and save.
// A failed send withholds only its own state mutation, so the notification
// is owed again next run (at-least-once across runs). Only load and save
// failures are fatal.
func (r *Reconciler) Run(ctx context.Context, campaigns []*campaign.Campaign, fetchedAt time.Time) (Outcome, error) {
	now := fetchedAt.UTC()
	nowStr := now.Format(time.RFC3339)

	state, err := r.store.Load(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("load state: %w", err)
	}

	var newCampaigns []*campaign.Campaign
	var reminders []reminderDue

	for _, c := range campaigns {
		entry, ok := state[c.ID]
		if !ok {
			entry = &campaign.StateEntry{
				Title:           c.Title,
				FirstDetectedAt: nowStr,
				RemindersSent:   []string{},
			}
			state[c.ID] = entry
			r.logger.Info("New campaign detected", "id", c.ID, "title", c.Title)
		}

		// Refresh on every sighting. The start estimate is overwritten
		// unconditionally: countdown readings drift and later runs are
		// closer to the truth.
		entry.Title = c.Title
		entry.LastSeenAt = nowStr
		if c.StartAtUTC != nil {
			entry.StartTimestampUTC = c.StartAtUTC.Format(time.RFC3339)
		} else {
			entry.StartTimestampUTC = ""
		}
		if entry.RemindersSent == nil {
			entry.RemindersSent = []string{}
		}

		if !entry.InitialNotified {
			newCampaigns = append(newCampaigns, c)
		}

		if c.StartAtUTC == nil {
			continue
		}
		timeLeft := c.StartAtUTC.Sub(now)
		if timeLeft <= 0 {
			continue
		}

		// Smallest unfired threshold (ascending scan) the remaining time
		// has crossed. At most one reminder per campaign per run; a missed
		// run fires only the soonest owed threshold, not a catch-up burst.
		for _, th := range r.thresholds {
			if entry.ReminderSent(th.Key) {
				continue
			}
			if timeLeft <= th.Within {
				reminders = append(reminders, reminderDue{campaign: c, timeLeft: timeLeft, key: th.Key})
				break
			}
		}
	}

	var outcome Outcome

	if len(newCampaigns) > 0 {
		if err := r.notifier.SendNewCampaigns(ctx, newCampaigns, fetchedAt); err != nil {
			r.logger.Warn("New campaign notification failed, will retry next run",
				"campaign_count", len(newCampaigns),
				"error", err)
		} else {
			outcome.InitialSent = true
			for _, c := range newCampaigns {
				entry := state[c.ID]
				entry.InitialNotified = true
				entry.InitialNotifiedAt = nowStr
			}
			r.logger.Info("New campaign notification sent", "campaign_count", len(newCampaigns))
		}
	}

	for _, due := range reminders {
		if err := r.notifier.SendReminder(ctx, due.campaign, due.timeLeft, due.key); err != nil {
			r.logger.Warn("Reminder send failed, will retry next run",
				"campaign", due.campaign.Title,
				"threshold", due.key,
				"error", err)
			continue
		}

		outcome.ReminderSent = true
		entry := state[due.campaign.ID]
		entry.RemindersSent = append(entry.RemindersSent, due.key)
		entry.ReminderHistory = append(entry.ReminderHistory, campaign.ReminderRecord{
			Key:    due.key,
			SentAt: nowStr,
		})
		r.logger.Info("Reminder sent", "campaign", due.campaign.Title, "threshold", due.key)
	}

	storage.Prune(state, now)

	if err := r.store.Save(ctx, state); err != nil {
		return outcome, fmt.Errorf("save state: %w", err)
	}

	return outcome, nil
}
