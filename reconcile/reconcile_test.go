package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"campaign-notifier/pkg/campaign"
)

type fakeStore struct {
	state   campaign.State
	saved   bool
	loadErr error
	saveErr error
}

func (f *fakeStore) Load(context.Context) (campaign.State, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.state == nil {
		f.state = campaign.State{}
	}
	return f.state, nil
}

func (f *fakeStore) Save(_ context.Context, state campaign.State) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = true
	f.state = state
	return nil
}

type sentReminder struct {
	title    string
	key      string
	timeLeft time.Duration
}

type fakeNotifier struct {
	batchErr    error
	reminderErr error
	batches     [][]*campaign.Campaign
	reminders   []sentReminder
}

func (f *fakeNotifier) SendNewCampaigns(_ context.Context, campaigns []*campaign.Campaign, _ time.Time) error {
	if f.batchErr != nil {
		return f.batchErr
	}
	f.batches = append(f.batches, campaigns)
	return nil
}

func (f *fakeNotifier) SendReminder(_ context.Context, c *campaign.Campaign, timeLeft time.Duration, key string) error {
	if f.reminderErr != nil {
		return f.reminderErr
	}
	f.reminders = append(f.reminders, sentReminder{title: c.Title, key: key, timeLeft: timeLeft})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testCampaign(title string, now time.Time, startAt *time.Time) *campaign.Campaign {
	c := &campaign.Campaign{
		ID:          campaign.ID(title, "desc"),
		Title:       title,
		Description: "desc",
		Status:      "เร็วๆ นี้",
	}
	if startAt != nil {
		utc := startAt.UTC()
		seconds := int64(utc.Sub(now) / time.Second)
		c.StartAtUTC = &utc
		c.SecondsUntilStart = &seconds
	}
	return c
}

func TestRunAnnouncesNewCampaignOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	c := testCampaign("Launch Festival", now, nil)

	outcome, err := New(store, notifier, testLogger()).Run(ctx, []*campaign.Campaign{c}, now)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !outcome.InitialSent {
		t.Error("first run should send the initial notification")
	}
	if len(notifier.batches) != 1 || len(notifier.batches[0]) != 1 {
		t.Fatalf("batches = %v, want one batch with one campaign", notifier.batches)
	}
	if !store.saved {
		t.Error("state should be saved at end of run")
	}

	entry := store.state[c.ID]
	if entry == nil {
		t.Fatal("state entry missing after run")
	}
	if !entry.InitialNotified {
		t.Error("InitialNotified should be true after successful send")
	}
	if entry.InitialNotifiedAt == "" || entry.FirstDetectedAt == "" || entry.LastSeenAt == "" {
		t.Error("timestamps should be recorded")
	}

	// Second run over the same inputs: nothing new to announce.
	notifier2 := &fakeNotifier{}
	outcome, err = New(store, notifier2, testLogger()).Run(ctx, []*campaign.Campaign{c}, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Any() {
		t.Error("second run should deliver nothing")
	}
	if len(notifier2.batches) != 0 {
		t.Errorf("second run sent %d batches, want 0", len(notifier2.batches))
	}
}

func TestRunFailedInitialSendLeavesStateRetryable(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	notifier := &fakeNotifier{batchErr: errors.New("telegram down")}
	c := testCampaign("Launch Festival", now, nil)

	outcome, err := New(store, notifier, testLogger()).Run(ctx, []*campaign.Campaign{c}, now)
	if err != nil {
		t.Fatalf("Run() error = %v, send failures must not be fatal", err)
	}
	if outcome.Any() {
		t.Error("outcome should report nothing sent")
	}

	entry := store.state[c.ID]
	if entry == nil {
		t.Fatal("entry should still be seeded on failed send")
	}
	if entry.InitialNotified {
		t.Error("InitialNotified must stay false after a failed send")
	}
	if entry.InitialNotifiedAt != "" {
		t.Error("InitialNotifiedAt must stay empty after a failed send")
	}

	// Next run retries the announcement.
	retryNotifier := &fakeNotifier{}
	outcome, err = New(store, retryNotifier, testLogger()).Run(ctx, []*campaign.Campaign{c}, now.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !outcome.InitialSent {
		t.Error("announcement should be retried on the next run")
	}
}

func TestRunReminderFiresSmallestUnfiredThreshold(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	startAt := now.Add(4*time.Minute + 30*time.Second)
	c := testCampaign("Launch Festival", now, &startAt)

	// 15m already fired; with 4m30s remaining only the 5m reminder is due.
	store := &fakeStore{state: campaign.State{
		c.ID: {
			Title:           c.Title,
			InitialNotified: true,
			RemindersSent:   []string{"15m"},
		},
	}}
	notifier := &fakeNotifier{}

	outcome, err := New(store, notifier, testLogger()).Run(ctx, []*campaign.Campaign{c}, now)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !outcome.ReminderSent {
		t.Error("reminder should have been sent")
	}
	if len(notifier.reminders) != 1 {
		t.Fatalf("reminders sent = %d, want 1", len(notifier.reminders))
	}
	r := notifier.reminders[0]
	if r.key != "5m" {
		t.Errorf("fired threshold = %q, want 5m (15m must not re-fire)", r.key)
	}
	if r.timeLeft != 4*time.Minute+30*time.Second {
		t.Errorf("timeLeft = %v", r.timeLeft)
	}

	entry := store.state[c.ID]
	if !entry.ReminderSent("5m") || !entry.ReminderSent("15m") {
		t.Errorf("RemindersSent = %v, want both 15m and 5m", entry.RemindersSent)
	}
	if len(entry.ReminderHistory) != 1 || entry.ReminderHistory[0].Key != "5m" {
		t.Errorf("ReminderHistory = %v, want one 5m record", entry.ReminderHistory)
	}
}

func TestRunAtMostOneReminderPerCampaignPerRun(t *testing.T) {
	// 30 seconds remaining with nothing fired yet: only the smallest
	// threshold fires; the larger ones are not burst-delivered.
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	startAt := now.Add(30 * time.Second)
	c := testCampaign("Launch Festival", now, &startAt)

	store := &fakeStore{state: campaign.State{
		c.ID: {Title: c.Title, InitialNotified: true, RemindersSent: []string{}},
	}}
	notifier := &fakeNotifier{}

	if _, err := New(store, notifier, testLogger()).Run(ctx, []*campaign.Campaign{c}, now); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(notifier.reminders) != 1 {
		t.Fatalf("reminders sent = %d, want exactly 1", len(notifier.reminders))
	}
	if notifier.reminders[0].key != "1m" {
		t.Errorf("fired threshold = %q, want 1m", notifier.reminders[0].key)
	}
}

func TestRunNoReminderWithoutPositiveTimeLeft(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Minute)
	exactly := now
	started := testCampaign("Already Started", now, &past)
	startingNow := testCampaign("Starting Now", now, &exactly)

	store := &fakeStore{state: campaign.State{
		started.ID:     {Title: started.Title, InitialNotified: true, RemindersSent: []string{}},
		startingNow.ID: {Title: startingNow.Title, InitialNotified: true, RemindersSent: []string{}},
	}}
	notifier := &fakeNotifier{}

	if _, err := New(store, notifier, testLogger()).Run(ctx, []*campaign.Campaign{started, startingNow}, now); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(notifier.reminders) != 0 {
		t.Errorf("reminders sent = %d, want 0 for zero/negative time left", len(notifier.reminders))
	}
}

func TestRunFailedReminderLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	startAt := now.Add(30 * time.Second)
	c := testCampaign("Launch Festival", now, &startAt)

	store := &fakeStore{state: campaign.State{
		c.ID: {Title: c.Title, InitialNotified: true, RemindersSent: []string{}},
	}}
	notifier := &fakeNotifier{reminderErr: errors.New("telegram down")}

	outcome, err := New(store, notifier, testLogger()).Run(ctx, []*campaign.Campaign{c}, now)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.ReminderSent {
		t.Error("outcome should not report a reminder")
	}

	entry := store.state[c.ID]
	if len(entry.RemindersSent) != 0 {
		t.Errorf("RemindersSent = %v, want empty after failed send", entry.RemindersSent)
	}
	if len(entry.ReminderHistory) != 0 {
		t.Errorf("ReminderHistory = %v, want empty after failed send", entry.ReminderHistory)
	}
}

func TestRunPrunesStaleEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	store := &fakeStore{state: campaign.State{
		"stale":     {Title: "Old", LastSeenAt: now.Add(-15 * 24 * time.Hour).Format(time.RFC3339)},
		"malformed": {Title: "Odd", LastSeenAt: "not-a-timestamp"},
	}}

	if _, err := New(store, &fakeNotifier{}, testLogger()).Run(ctx, nil, now); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, ok := store.state["stale"]; ok {
		t.Error("stale entry should be pruned")
	}
	if _, ok := store.state["malformed"]; !ok {
		t.Error("entry with unparseable last_seen_at should be kept")
	}
}

func TestRunRefreshesEntryEachSighting(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	startAt := now.Add(2 * time.Hour)
	c := testCampaign("Launch Festival", now, &startAt)

	store := &fakeStore{state: campaign.State{
		c.ID: {
			Title:             "Old Title",
			FirstDetectedAt:   "2026-02-20T00:00:00Z",
			LastSeenAt:        "2026-02-28T00:00:00Z",
			StartTimestampUTC: "2026-02-28T10:00:00Z",
			InitialNotified:   true,
		},
	}}

	if _, err := New(store, &fakeNotifier{}, testLogger()).Run(ctx, []*campaign.Campaign{c}, now); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	entry := store.state[c.ID]
	if entry.Title != "Launch Festival" {
		t.Errorf("Title = %q, want refreshed title", entry.Title)
	}
	if entry.LastSeenAt != now.Format(time.RFC3339) {
		t.Errorf("LastSeenAt = %q, want %q", entry.LastSeenAt, now.Format(time.RFC3339))
	}
	if entry.FirstDetectedAt != "2026-02-20T00:00:00Z" {
		t.Errorf("FirstDetectedAt = %q, must never be overwritten", entry.FirstDetectedAt)
	}
	if entry.StartTimestampUTC != startAt.UTC().Format(time.RFC3339) {
		t.Errorf("StartTimestampUTC = %q, want refreshed estimate", entry.StartTimestampUTC)
	}
	if entry.RemindersSent == nil {
		t.Error("RemindersSent should be normalized to an empty slice")
	}
}

func TestRunLoadAndSaveErrorsAreFatal(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := New(&fakeStore{loadErr: errors.New("disk gone")}, &fakeNotifier{}, testLogger()).Run(ctx, nil, now); err == nil {
		t.Error("load failure should be fatal")
	}
	if _, err := New(&fakeStore{saveErr: errors.New("disk gone")}, &fakeNotifier{}, testLogger()).Run(ctx, nil, now); err == nil {
		t.Error("save failure should be fatal")
	}
}

func TestRunEndToEndTwoRuns(t *testing.T) {
	// Fresh state, one campaign starting in 10 minutes. The first run
	// announces it and fires the 15m reminder (10m remaining crosses it).
	// A second run at T+9m30s fires only the 1m reminder.
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	startAt := t0.Add(10 * time.Minute)

	store := &fakeStore{}
	first := &fakeNotifier{}
	c := testCampaign("Launch Festival", t0, &startAt)

	outcome, err := New(store, first, testLogger()).Run(ctx, []*campaign.Campaign{c}, t0)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if !outcome.InitialSent {
		t.Error("first run should announce the campaign")
	}
	if len(first.reminders) != 1 || first.reminders[0].key != "15m" {
		t.Fatalf("first run reminders = %v, want one 15m", first.reminders)
	}

	entry := store.state[c.ID]
	if !entry.InitialNotified {
		t.Fatal("InitialNotified should be set after first run")
	}

	// Second run, 30 seconds before start.
	t1 := t0.Add(9*time.Minute + 30*time.Second)
	second := &fakeNotifier{}

	outcome, err = New(store, second, testLogger()).Run(ctx, []*campaign.Campaign{c}, t1)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if outcome.InitialSent {
		t.Error("second run must not re-announce")
	}
	if len(second.batches) != 0 {
		t.Errorf("second run batches = %d, want 0", len(second.batches))
	}
	if len(second.reminders) != 1 || second.reminders[0].key != "1m" {
		t.Fatalf("second run reminders = %v, want one 1m", second.reminders)
	}

	entry = store.state[c.ID]
	if !entry.ReminderSent("15m") || !entry.ReminderSent("1m") {
		t.Errorf("RemindersSent = %v, want 15m and 1m", entry.RemindersSent)
	}
}
