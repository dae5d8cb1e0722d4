package signals

import (
	"math"
	"slices"
	"testing"

	"feedrank/internal/config"
)

func TestMetrics(t *testing.T) {
	e := New(config.DefaultSignals())
	m := e.Metrics("FREE MONEY!! click here https://bit.ly/abc https://go.bit.ly/x https://example.com #win #Crypto @alice")
	if m.URLCount != 3 || m.SuspiciousURLCount != 2 {
		t.Fatalf("urls: %+v", m)
	}
	if m.HashtagCount != 2 || m.MentionCount != 1 {
		t.Fatalf("tags: %+v", m)
	}
	if math.Abs(m.SpamKeywordScore-0.3) > 1e-9 {
		t.Fatalf("keyword score: %v", m.SpamKeywordScore)
	}
	if (e.Metrics("") != ContentMetrics{}) {
		t.Fatalf("empty content should have zero metrics")
	}
}

func TestKeywordHitsAreDistinct(t *testing.T) {
	e := New(config.SignalsConfig{SpamKeywords: []string{"airdrop", "dm me"}, KeywordHit: 0.5})
	hits := e.KeywordHits("AIRDROP airdrop airdrop, DM me")
	slices.Sort(hits)
	if !slices.Equal(hits, []string{"airdrop", "dm me"}) {
		t.Fatalf("hits: %v", hits)
	}
	if got := e.KeywordScore("airdrop dm me airdrop"); got != 1 {
		t.Fatalf("score should cap at 1, got %v", got)
	}
}

func TestIsSuspiciousURL(t *testing.T) {
	e := New(config.SignalsConfig{SuspiciousDomains: []string{"bit.ly"}})
	cases := map[string]bool{
		"https://bit.ly/x":       true,
		"http://BIT.LY/x":        true,
		"https://go.bit.ly/y":    true,
		"https://notbit.ly/z":    false,
		"https://example.com/ok": false,
		"not a url":              false,
	}
	for raw, want := range cases {
		if got := e.IsSuspiciousURL(raw); got != want {
			t.Fatalf("%s: got %v want %v", raw, got, want)
		}
	}
}

func TestHashtagsAndMentionsLowercase(t *testing.T) {
	if got := Hashtags("#Go #go #RUST"); !slices.Equal(got, []string{"#go", "#go", "#rust"}) {
		t.Fatalf("hashtags: %v", got)
	}
	if got := Mentions("hi @Bob and @bob_2"); !slices.Equal(got, []string{"@bob", "@bob_2"}) {
		t.Fatalf("mentions: %v", got)
	}
}

func TestEmojiDensity(t *testing.T) {
	if got := EmojiDensity("plain text only"); got != 0 {
		t.Fatalf("no emoji: %v", got)
	}
	heavy := EmojiDensity("🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀")
	if heavy != 1 {
		t.Fatalf("emoji-only text should saturate, got %v", heavy)
	}
	light := EmojiDensity("nice 🙂")
	if light <= 0 || light >= 0.1 {
		t.Fatalf("single emoji density: %v", light)
	}
}

func TestCapsAndRepeats(t *testing.T) {
	ratio, letters := CapsRatio("BUY NOW ok")
	if letters != 8 || math.Abs(ratio-0.75) > 1e-9 {
		t.Fatalf("caps: %v %d", ratio, letters)
	}
	if got := RepeatedCharRatio("soooo", 4); math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("repeat ratio: %v", got)
	}
	if got := RepeatedCharRatio("hello", 4); got != 0 {
		t.Fatalf("no runs: %v", got)
	}
}
