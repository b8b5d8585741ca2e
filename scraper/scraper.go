// Package scraper handles fetching and parsing the campaign listing page.
package scraper

import (
	"regexp"
	"strings"
	"time"

	"campaign-notifier/countdown"
	"campaign-notifier/pkg/campaign"

	"github.com/PuerkitoBio/goquery"
)

// Marker is the localized status text identifying campaigns that are not
// yet live ("coming soon").
const Marker = "เร็วๆ นี้"

// startWord appears in countdown labels that count down to a campaign start
// (as opposed to an end).
const startWord = "เริ่ม"

// Selectors for the campaign cards. The site ships hashed utility classes,
// so these track the current markup and are expected to churn.
const (
	cardSelector        = "div.css-13h3uyu"
	titleSelector       = "div.css-enjgea"
	descriptionSelector = "div.css-nudebg"
	labelSelector       = "div.css-1pnvk1z"
	containerSelector   = "div.css-17u9nn0"
	statusSelector      = "button.css-10c8e6k"
)

// countdownLeafClasses mark the divs holding individual countdown values
// inside the countdown container. Matched by substring since the site
// appends variant suffixes.
var countdownLeafClasses = []string{"css-vurnku", "css-1jb05j4"}

const maxDescriptionRunes = 200

var markerButton = regexp.MustCompile(`<button[^>]*>\s*เร็วๆ\s*นี้\s*</button>`)

// ContainsMarker reports whether the rendered page mentions the coming-soon
// marker at all. Cheap pre-check before structural parsing; also matches the
// marker split across whitespace inside a button.
func ContainsMarker(html string) bool {
	if strings.Contains(html, Marker) {
		return true
	}
	return markerButton.MatchString(html)
}

// Extract parses the rendered page and returns the coming-soon campaigns in
// document order. fetchedAt anchors countdown-derived start times and must
// be UTC-aware. A page with no matching cards yields an empty slice; parse
// problems inside a card degrade to documented fallback values.
func Extract(html string, fetchedAt time.Time) ([]*campaign.Campaign, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var campaigns []*campaign.Campaign
	doc.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
		status := textOr(card.Find(statusSelector).First(), "Unknown")
		if status != Marker && !strings.Contains(status, Marker) {
			return
		}

		title := textOr(card.Find(titleSelector).First(), "Unknown Campaign")
		description := textOr(card.Find(descriptionSelector).First(), "")
		label := textOr(card.Find(labelSelector).First(), "")
		countdownText := countdownValue(card)

		c := &campaign.Campaign{
			ID:             campaign.ID(title, description),
			Title:          title,
			Description:    truncate(description, maxDescriptionRunes),
			CountdownLabel: label,
			Countdown:      countdownText,
			Status:         status,
		}

		// A start time exists only when the label is a "starts in" countdown
		// and the countdown text itself parses. Both derived fields are set
		// together or not at all.
		if label != "" && strings.Contains(label, startWord) {
			if d, ok := countdown.Parse(countdownText); ok {
				startAt := fetchedAt.Add(d).UTC()
				seconds := int64(d / time.Second)
				c.StartAtUTC = &startAt
				c.SecondsUntilStart = &seconds
			}
		}

		campaigns = append(campaigns, c)
	})

	return campaigns, nil
}

// countdownValue joins the countdown leaf values inside a card. Returns ""
// when the card has no countdown container, and "Unknown" when the container
// exists but holds no readable values.
func countdownValue(card *goquery.Selection) string {
	container := card.Find(containerSelector).First()
	if container.Length() == 0 {
		return ""
	}

	var parts []string
	container.Find("div").Each(func(_ int, leaf *goquery.Selection) {
		class, _ := leaf.Attr("class")
		if !hasAnyClass(class, countdownLeafClasses) {
			return
		}
		if value := strings.TrimSpace(leaf.Text()); value != "" {
			parts = append(parts, value)
		}
	})

	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, " ")
}

func hasAnyClass(classAttr string, wanted []string) bool {
	for _, w := range wanted {
		if strings.Contains(classAttr, w) {
			return true
		}
	}
	return false
}

func textOr(sel *goquery.Selection, fallback string) string {
	if sel.Length() == 0 {
		return fallback
	}
	text := strings.TrimSpace(sel.Text())
	if text == "" {
		return fallback
	}
	return text
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
