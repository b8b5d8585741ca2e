package notify

import (
	"context"
	"log/slog"
	"time"

	"campaign-notifier/pkg/campaign"
)

// Sender sends campaign notifications using a pluggable provider.
type Sender struct {
	provider  Provider
	logger    *slog.Logger
	sourceURL string // Shown as the link line in every message
}

// NewSender creates a notification sender with the given provider.
func NewSender(provider Provider, sourceURL string, logger *slog.Logger) *Sender {
	return &Sender{
		provider:  provider,
		logger:    logger,
		sourceURL: sourceURL,
	}
}

// SendNewCampaigns sends one combined announcement for all newly detected
// campaigns.
func (s *Sender) SendNewCampaigns(ctx context.Context, campaigns []*campaign.Campaign, fetchedAt time.Time) error {
	if len(campaigns) == 0 {
		return nil
	}

	s.logger.Info("Sending new campaign notification", "campaign_count", len(campaigns))
	return s.provider.Send(ctx, NewCampaigns(campaigns, fetchedAt, s.sourceURL))
}

// SendReminder sends a single reminder for a campaign approaching its start.
func (s *Sender) SendReminder(ctx context.Context, c *campaign.Campaign, timeLeft time.Duration, thresholdKey string) error {
	s.logger.Info("Sending campaign reminder",
		"campaign", c.Title,
		"threshold", thresholdKey,
		"time_left", timeLeft.String())
	return s.provider.Send(ctx, Reminder(c, timeLeft, thresholdKey, s.sourceURL))
}

// SendHeartbeat sends the liveness summary for a run with nothing to report.
func (s *Sender) SendHeartbeat(ctx context.Context, campaigns []*campaign.Campaign) error {
	s.logger.Info("Sending heartbeat", "campaign_count", len(campaigns))
	return s.provider.Send(ctx, Heartbeat(campaigns, s.sourceURL))
}

// SendError sends the best-effort notification about a fatal run failure.
func (s *Sender) SendError(ctx context.Context, runErr error, now time.Time) error {
	s.logger.Info("Sending error notification", "error", runErr.Error())
	return s.provider.Send(ctx, ErrorReport(runErr, now))
}
