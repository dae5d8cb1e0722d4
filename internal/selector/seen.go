package selector

import (
	"strings"
	"time"

	"feedrank/internal/model"
)

// Layouts tried after RFC 3339 for timestamps stored without a zone. These are
// read as UTC.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// hoursSinceSeen returns the hours since the viewer saw id, or -1 when the post
// was never seen or the sighting carries no usable timestamp. Future sightings
// count as just seen.
func hoursSinceSeen(seen model.SeenMap, id string, now time.Time) float64 {
	raw, ok := seen[id]
	if !ok {
		return -1
	}
	at, ok := parseSeen(raw)
	if !ok {
		return -1
	}
	return max(0, now.Sub(at).Hours())
}

func parseSeen(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, true
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
