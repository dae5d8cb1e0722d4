package selector

import (
	"testing"
	"time"

	"feedrank/internal/model"
)

func TestHoursSinceSeen(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seen := model.SeenMap{
		"rfc":    "2025-03-01T10:00:00Z",
		"offset": "2025-03-01T13:00:00+02:00",
		"naive":  "2025-03-01 06:00:00",
		"naiveT": "2025-03-01T11:30:00.250",
		"blank":  "",
		"junk":   "yesterday",
		"future": "2025-03-02T00:00:00Z",
	}
	cases := map[string]float64{
		"rfc":     2,
		"offset":  1,
		"naive":   6,
		"naiveT":  0.5 - 0.25/3600,
		"blank":   -1,
		"junk":    -1,
		"future":  0,
		"missing": -1,
	}
	for id, want := range cases {
		got := hoursSinceSeen(seen, id, now)
		if diff := got - want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("%s: got %v want %v", id, got, want)
		}
	}
}
