// Package countdown parses the free-text countdown strings shown on the
// campaign page into durations.
package countdown

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Thai unit words as rendered on the page, paired with their multipliers.
var units = []struct {
	word string
	dur  time.Duration
}{
	{"วัน", 24 * time.Hour},
	{"ชั่วโมง", time.Hour},
	{"นาที", time.Minute},
	{"วินาที", time.Second},
}

var (
	unitPatterns = buildUnitPatterns()
	digitRuns    = regexp.MustCompile(`\d+`)
)

func buildUnitPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(units))
	for i, u := range units {
		patterns[i] = regexp.MustCompile(`(\d+)\s*` + u.word)
	}
	return patterns
}

// Parse converts a countdown string into a duration. The page's countdown
// markup is not stable, so several formats are tried in order: unit words in
// any subset and order, a 3- or 4-segment colon timer (H:M:S or D:H:M:S),
// and finally exactly four loose numbers read positionally as D/H/M/S.
// ok is false when none of them apply; an absent or unparseable countdown is
// normal, not an error. A zero duration (e.g. "0:00:00") parses with ok true.
func Parse(text string) (d time.Duration, ok bool) {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return 0, false
	}

	var total time.Duration
	for i, u := range units {
		if m := unitPatterns[i].FindStringSubmatch(stripped); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			total += time.Duration(n) * u.dur
		}
	}
	if total != 0 {
		return total, true
	}

	if d, ok := parseColonTimer(stripped); ok {
		return d, true
	}

	if nums := digitRuns.FindAllString(stripped, -1); len(nums) == 4 {
		return composeDHMS(nums), true
	}

	return 0, false
}

func parseColonTimer(s string) (time.Duration, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 && len(parts) != 4 {
		return 0, false
	}
	for _, p := range parts {
		if p == "" || strings.IndexFunc(p, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
			return 0, false
		}
	}
	if len(parts) == 3 {
		parts = append([]string{"0"}, parts...)
	}
	return composeDHMS(parts), true
}

func composeDHMS(parts []string) time.Duration {
	var vals [4]int
	for i, p := range parts {
		vals[i], _ = strconv.Atoi(p)
	}
	return time.Duration(vals[0])*24*time.Hour +
		time.Duration(vals[1])*time.Hour +
		time.Duration(vals[2])*time.Minute +
		time.Duration(vals[3])*time.Second
}
