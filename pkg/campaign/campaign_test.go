package campaign

import "testing"

func TestID(t *testing.T) {
	a := ID("Launch Festival", "Trade and win")
	b := ID("Launch Festival", "Trade and win")
	if a != b {
		t.Errorf("ID() not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("ID() length = %d, want 64 hex chars", len(a))
	}

	if ID("Launch Festival", "Trade and win more") == a {
		t.Error("ID() should change when description changes")
	}
	if ID("Launch Fest", "Trade and win") == a {
		t.Error("ID() should change when title changes")
	}

	// The separator prevents ambiguous concatenations from colliding.
	if ID("ab", "c") == ID("a", "bc") {
		t.Error("ID() should separate title from description")
	}
}

func TestReminderSent(t *testing.T) {
	entry := &StateEntry{RemindersSent: []string{"15m", "5m"}}

	if !entry.ReminderSent("5m") {
		t.Error("ReminderSent(5m) = false, want true")
	}
	if entry.ReminderSent("1m") {
		t.Error("ReminderSent(1m) = true, want false")
	}

	var empty StateEntry
	if empty.ReminderSent("1m") {
		t.Error("ReminderSent on empty entry = true, want false")
	}
}
