package spam

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"feedrank/internal/config"
	"feedrank/internal/model"
	"feedrank/internal/signals"
)

// evalOf builds the evaluation Evaluate would run over posts.
func evalOf(posts []model.Post, profile model.Profile) *evaluation {
	cfg := config.Default()
	a := New(nil, signals.New(cfg.Signals), cfg.Spam)
	h := history(posts, profile)
	dated := datedOnly(head(h.Originals, cfg.Spam.OriginalWindow))
	return &evaluation{cfg: cfg.Spam, ex: a.signals, h: a.bound(h, testNow), dated: dated, now: testNow}
}

// textPosts dates texts an hour apart, newest first, each with one like.
func textPosts(texts ...string) []model.Post {
	out := make([]model.Post, len(texts))
	for i, s := range texts {
		out[i] = model.Post{
			ID:        fmt.Sprintf("p%d", i),
			Content:   s,
			CreatedAt: testNow.Add(-time.Duration(i+1) * time.Hour),
			LikeCount: 1,
		}
	}
	return out
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDuplicateTiersAndOverride(t *testing.T) {
	cases := []struct {
		groups   []int
		distinct int
		want     float64
	}{
		{[]int{9}, 21, 0.9},
		{[]int{8}, 22, 0},
		{[]int{3, 3, 3, 3}, 8, 0.5},
		{[]int{3, 3, 3, 2}, 9, 0},
		{[]int{4, 4, 4, 4}, 4, 0.8},
		{[]int{4, 4, 4, 4, 3}, 1, 0.8},
		{[]int{4, 4, 4, 4, 4}, 0, 1},
	}
	for _, tc := range cases {
		var texts []string
		for g, n := range tc.groups {
			for range n {
				texts = append(texts, fmt.Sprintf("Repeated announcement %d!", g))
			}
		}
		for i := range tc.distinct {
			texts = append(texts, fmt.Sprintf("unique thought %d", i))
		}
		in := evalOf(textPosts(texts...), model.Profile{}).duplicate()
		if in.Score != tc.want {
			t.Fatalf("groups %v + %d distinct: score %v want %v (%s)", tc.groups, tc.distinct, in.Score, tc.want, in.Details)
		}
	}
}

func TestNearDuplicatePairRatio(t *testing.T) {
	a := "the quick brown fox jumps over the lazy dog near the river bank"
	a1, a2 := a+" today", a+" again"
	b, c, d := cleanTexts[2], cleanTexts[7], cleanTexts[8]
	cases := []struct {
		texts []string
		want  float64
	}{
		{[]string{a, a1, a2, b}, 1},      // 3 of 6 pairs
		{[]string{a, a1, a2, b, c}, 0.7}, // 3 of 10
		{[]string{a, a1, b, c}, 0.4},     // 1 of 6
		{[]string{a, a1, b, c, d}, 0},    // 1 of 10
		{[]string{a, a1}, 0},             // too few posts
	}
	for _, tc := range cases {
		in := evalOf(textPosts(tc.texts...), model.Profile{}).nearDuplicate()
		if in.Score != tc.want {
			t.Fatalf("%d posts: score %v want %v (%s)", len(tc.texts), in.Score, tc.want, in.Details)
		}
	}
}

func TestURLShortenerSubdomains(t *testing.T) {
	e := evalOf(textPosts(
		"look https://go.bit.ly/a",
		"again https://go.bit.ly/b",
		"https://notbit.ly/c here",
		"plain words",
		"more plain words",
	), model.Profile{})
	in := e.urls()
	if !near(in.Score, 0.16) {
		t.Fatalf("score %v want 0.16 (%s)", in.Score, in.Details)
	}
	if len(in.Impacting) != 2 {
		t.Fatalf("impacting: %+v", in.Impacting)
	}
	for _, p := range in.Impacting {
		if !strings.Contains(p.Reason, "shortener") {
			t.Fatalf("reason: %q", p.Reason)
		}
	}
}

func TestRepetitiveMentions(t *testing.T) {
	repeat := func(n int, text func(i int) string) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = text(i)
		}
		return out
	}
	cases := []struct {
		name  string
		texts []string
		want  float64
	}{
		{"same target", repeat(10, func(int) string { return "thanks @bob for the tip" }), 0.6},
		{"distinct targets", repeat(10, func(i int) string { return fmt.Sprintf("thanks @u%d for the tip", i) }), 0},
		{"below minimum", repeat(9, func(int) string { return "thanks @bob for the tip" }), 0},
	}
	for _, tc := range cases {
		in := evalOf(textPosts(tc.texts...), model.Profile{}).mentions()
		if in.Score != tc.want {
			t.Fatalf("%s: score %v want %v (%s)", tc.name, in.Score, tc.want, in.Details)
		}
	}
}

func TestQualityFlagsCapitals(t *testing.T) {
	texts := []string{
		"THIS IS A HUGE ANNOUNCEMENT TODAY",
		"THIS IS A HUGE ANNOUNCEMENT TODAY",
		"THIS IS A HUGE ANNOUNCEMENT TODAY",
		"THIS IS A HUGE ANNOUNCEMENT TODAY",
		"OK GO NOW", // too few letters to count as shouting
	}
	texts = append(texts, cleanTexts[:5]...)
	in := evalOf(textPosts(texts...), model.Profile{}).quality()
	if !near(in.Score, 0.4) {
		t.Fatalf("score %v want 0.4 (%s)", in.Score, in.Details)
	}
	if len(in.Impacting) != 4 {
		t.Fatalf("impacting: %+v", in.Impacting)
	}
	for _, p := range in.Impacting {
		if p.Reason != "mostly capital letters" {
			t.Fatalf("reason: %q", p.Reason)
		}
	}
}

func TestQualityFlagsSpamPhrases(t *testing.T) {
	var texts []string
	for range 4 {
		texts = append(texts, "crypto giveaway airdrop presale click here")
	}
	texts = append(texts, cleanTexts[:6]...)
	in := evalOf(textPosts(texts...), model.Profile{}).quality()
	// 40% low quality plus half the 0.24 average keyword score
	if !near(in.Score, 0.52) {
		t.Fatalf("score %v want 0.52 (%s)", in.Score, in.Details)
	}
	if len(in.Impacting) != 4 {
		t.Fatalf("impacting: %+v", in.Impacting)
	}
	for _, p := range in.Impacting {
		if !strings.HasPrefix(p.Reason, "spam phrases: ") {
			t.Fatalf("reason: %q", p.Reason)
		}
	}
}

func TestEngagementNeedsVolume(t *testing.T) {
	silent := func(n int) []model.Post {
		out := make([]model.Post, n)
		for i := range out {
			out[i] = model.Post{
				ID:        fmt.Sprintf("s%d", i),
				Content:   cleanTexts[i%len(cleanTexts)],
				CreatedAt: testNow.Add(-time.Duration(i+1) * 15 * time.Minute),
			}
		}
		return out
	}
	if in := evalOf(silent(10), model.Profile{}).engagement(); in.Score != 0.9 {
		t.Fatalf("10 silent posts in 6h: %v (%s)", in.Score, in.Details)
	}
	if in := evalOf(silent(9), model.Profile{}).engagement(); in.Score != 0 {
		t.Fatalf("9 silent posts are below every gate: %v (%s)", in.Score, in.Details)
	}
}

func TestBotTiers(t *testing.T) {
	names := []string{
		config.IndicatorDuplicate, config.IndicatorNearDuplicate, config.IndicatorFrequency,
		config.IndicatorTiming, config.IndicatorURL, config.IndicatorMention,
		config.IndicatorEngagement, config.IndicatorAccount, config.IndicatorQuality,
	}
	e := evalOf(nil, model.Profile{})
	for _, tc := range []struct {
		high int
		want float64
	}{{0, 0}, {1, 0}, {2, 0.35}, {3, 0.6}, {4, 0.8}, {5, 1}, {7, 1}} {
		others := []Indicator{{Name: config.IndicatorHashtag, Score: 1}}
		for i, name := range names {
			var score float64
			if i < tc.high {
				score = 1
			}
			others = append(others, Indicator{Name: name, Score: score})
		}
		if in := e.bot(others); in.Score != tc.want {
			t.Fatalf("%d high indicators: score %v want %v (%s)", tc.high, in.Score, tc.want, in.Details)
		}
	}

	// the high mark itself does not count
	others := []Indicator{
		{Name: config.IndicatorDuplicate, Score: 0.5},
		{Name: config.IndicatorNearDuplicate, Score: 0.41},
		{Name: config.IndicatorTiming, Score: 0.71},
	}
	if in := e.bot(others); in.Score != 0.35 {
		t.Fatalf("boundary: %v (%s)", in.Score, in.Details)
	}
}
