package notify

import (
	"fmt"
	"strings"
	"time"

	"campaign-notifier/pkg/campaign"
)

const (
	sectionSeparator = "━━━━━━━━━━━━━━━━━━━"
	timeFormat       = "2006-01-02 15:04:05 MST"
)

// CampaignSection renders one campaign block. Optional fields produce no
// line at all when absent.
func CampaignSection(c *campaign.Campaign) string {
	lines := []string{sectionSeparator, fmt.Sprintf("🎯 **%s**", c.Title)}

	if c.CountdownLabel != "" && c.Countdown != "" {
		lines = append(lines, fmt.Sprintf("⏳ %s: %s", c.CountdownLabel, c.Countdown))
	}
	if c.StartAtUTC != nil {
		lines = append(lines, fmt.Sprintf("🗓️ Start: %s", c.StartAtUTC.Local().Format(timeFormat)))
	}
	if c.Description != "" {
		lines = append(lines, fmt.Sprintf("💬 %s", c.Description))
	}

	lines = append(lines, fmt.Sprintf("🔘 Status: %s", c.Status))
	return strings.Join(lines, "\n")
}

// NewCampaigns renders the combined announcement for a batch of campaigns
// seen for the first time.
func NewCampaigns(campaigns []*campaign.Campaign, fetchedAt time.Time, sourceURL string) string {
	lines := []string{
		"✅ Status: FOUND",
		fmt.Sprintf("⏰ Time: %s", fetchedAt.Local().Format(timeFormat)),
		fmt.Sprintf("📊 Found %d new campaign(s)", len(campaigns)),
		"",
	}
	for _, c := range campaigns {
		lines = append(lines, CampaignSection(c))
	}
	lines = append(lines, sectionSeparator, fmt.Sprintf("🔗 %s", sourceURL))
	return strings.Join(lines, "\n")
}

// Reminder renders a single reminder for a campaign approaching its start.
func Reminder(c *campaign.Campaign, timeLeft time.Duration, thresholdKey, sourceURL string) string {
	lines := []string{
		fmt.Sprintf("⏰ Campaign Reminder (%s)", thresholdKey),
		"",
		fmt.Sprintf("🎯 %s", c.Title),
		fmt.Sprintf("⏳ Starts in about %s", HumanizeDuration(timeLeft)),
	}

	if c.StartAtUTC != nil {
		lines = append(lines, fmt.Sprintf("🗓️ Starts at %s", c.StartAtUTC.Local().Format(timeFormat)))
	}
	if c.Description != "" {
		lines = append(lines, "", c.Description)
	}

	lines = append(lines, "", fmt.Sprintf("🔗 %s", sourceURL))
	return strings.Join(lines, "\n")
}

// Heartbeat renders the liveness message sent when a run produced no
// announcement and no reminder.
func Heartbeat(campaigns []*campaign.Campaign, sourceURL string) string {
	var header string
	switch {
	case len(campaigns) == 1:
		header = "1 Campaign found ✅"
	case len(campaigns) > 1:
		header = fmt.Sprintf("%d Campaigns found ✅", len(campaigns))
	default:
		header = "No campaigns found ‼️"
	}

	lines := []string{header}
	for _, c := range campaigns {
		lines = append(lines, CampaignSection(c))
	}
	lines = append(lines, "", fmt.Sprintf("🔗 %s", sourceURL))
	return strings.Join(lines, "\n")
}

// ErrorReport renders the best-effort failure notification for a fatal run.
func ErrorReport(err error, now time.Time) string {
	return fmt.Sprintf("❌ [Campaign Monitor ERROR]\n\nError: %v\nTime: %s", err, now.Local().Format(timeFormat))
}

// HumanizeDuration renders a duration in compact d/h/m/s form, such as
// "2d 5h 3m" or "9m 30s". Negative durations clamp to zero.
func HumanizeDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}

	days := total / 86400
	remainder := total % 86400
	hours := remainder / 3600
	remainder %= 3600
	minutes := remainder / 60
	seconds := remainder % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if days > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if len(parts) == 0 || minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if days == 0 && seconds > 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}
