package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// Renderer produces the rendered HTML of a page. The production site builds
// its campaign list client-side, so deployments front this with a rendering
// service; the plain HTTP implementation below is used everywhere the
// served markup is already complete.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// HTTPRenderer fetches a page over plain HTTP with retries, then waits a
// short best-effort window for the coming-soon marker to appear before
// giving the page back. Marker absence after the window is not an error.
type HTTPRenderer struct {
	client     *http.Client
	logger     *slog.Logger
	markerWait time.Duration
}

// NewHTTPRenderer creates a renderer. markerWait bounds the best-effort
// marker wait; zero disables it.
func NewHTTPRenderer(client *http.Client, markerWait time.Duration, logger *slog.Logger) *HTTPRenderer {
	return &HTTPRenderer{
		client:     client,
		logger:     logger,
		markerWait: markerWait,
	}
}

// Render fetches the page and returns its HTML.
func (r *HTTPRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	html, err := r.fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}

	if r.markerWait <= 0 || ContainsMarker(html) {
		return html, nil
	}

	// Scoped wait for the marker: re-poll until the window closes, then
	// settle for whatever the page last returned.
	deadline := time.Now().Add(r.markerWait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return html, nil
		case <-time.After(time.Second):
		}

		refreshed, err := r.fetch(ctx, pageURL)
		if err != nil {
			r.logger.Warn("Marker wait refetch failed, keeping previous page", "url", pageURL, "error", err)
			break
		}
		html = refreshed
		if ContainsMarker(html) {
			r.logger.Info("Coming-soon marker appeared during wait window", "url", pageURL)
			break
		}
	}

	return html, nil
}

func (r *HTTPRenderer) fetch(ctx context.Context, pageURL string) (string, error) {
	var html string

	err := retry.Do(
		func() error {
			r.logger.Info("HTTP request starting",
				"method", "GET",
				"url", pageURL,
				"purpose", "fetch_campaign_page")

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}

			// Set essential Chrome-like headers to avoid getting blocked
			req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
			req.Header.Set("Accept-Language", "th-TH,th;q=0.9,en-US;q=0.8,en;q=0.7")
			// Note: Don't set Accept-Encoding - let Go's http.Client handle compression automatically
			req.Header.Set("Sec-Ch-Ua", `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`)
			req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
			req.Header.Set("Sec-Ch-Ua-Platform", `"macOS"`)
			req.Header.Set("Sec-Fetch-Dest", "document")
			req.Header.Set("Sec-Fetch-Mode", "navigate")
			req.Header.Set("Sec-Fetch-Site", "none")
			req.Header.Set("Sec-Fetch-User", "?1")
			req.Header.Set("Upgrade-Insecure-Requests", "1")
			req.Header.Set("Cache-Control", "max-age=0")

			startTime := time.Now()
			resp, err := r.client.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				r.logger.Warn("HTTP request failed, will retry",
					"url", pageURL,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					r.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			r.logger.Info("HTTP request completed",
				"url", pageURL,
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds(),
				"content_length", resp.ContentLength)

			if resp.StatusCode != http.StatusOK {
				r.logger.Warn("HTTP request returned non-OK status, will retry", "status_code", resp.StatusCode)
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			var b strings.Builder
			if _, err := io.Copy(&b, resp.Body); err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			html = b.String()
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Info("Retrying fetch after error", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("after retries: %w", err)
	}

	return html, nil
}
