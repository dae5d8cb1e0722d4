package util

import (
	"slices"
	"testing"
)

func TestNormalizeContent(t *testing.T) {
	cases := map[string]string{
		"":                                  "",
		"  Hello\n\tWorld  ":                "hello world",
		"Check https://bit.ly/x this OUT":   "check this out",
		"HTTP://EXAMPLE.COM/path only link": "only link",
		"same   text":                       "same text",
	}
	for in, want := range cases {
		if got := NormalizeContent(in); got != want {
			t.Fatalf("NormalizeContent(%q) = %q want %q", in, got, want)
		}
	}
}

func TestNormalizeForSpamFoldsVariants(t *testing.T) {
	a := NormalizeForSpam("Café OFFER!!! https://x.io/1")
	b := NormalizeForSpam("cafe offer")
	if a != b {
		t.Fatalf("expected variants to collapse: %q vs %q", a, b)
	}
}

func TestTokenize(t *testing.T) {
	cases := map[string][]string{
		"":                                  nil,
		"Hello, World!":                     {"hello", "world"},
		"don't stop #GoLang @bob_99 now...": {"don't", "stop", "#golang", "@bob_99", "now"},
		"!!! --- ???":                       nil,
		"🔥🔥 fire 🔥":                         {"fire"},
		"line\nbreak\ttab":                  {"line", "break", "tab"},
	}
	for in, want := range cases {
		if got := Tokenize(in); !slices.Equal(got, want) {
			t.Fatalf("Tokenize(%q) = %q want %q", in, got, want)
		}
	}
}

func TestCharNGramsAndJaccard(t *testing.T) {
	a := CharNGrams("abcd", 3)
	if len(a) != 2 {
		t.Fatalf("expected 2 trigrams, got %d", len(a))
	}
	if got := Jaccard(a, CharNGrams("abcd", 3)); got != 1 {
		t.Fatalf("identical sets: %v", got)
	}
	if got := Jaccard(a, CharNGrams("xyz", 3)); got != 0 {
		t.Fatalf("disjoint sets: %v", got)
	}
	if got := Jaccard(CharNGrams("", 3), CharNGrams("", 3)); got != 0 {
		t.Fatalf("empty sets: %v", got)
	}
	if short := CharNGrams("ab", 3); len(short) != 1 {
		t.Fatalf("short string should yield itself, got %v", short)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 10); got != "héllo" {
		t.Fatalf("untouched: %q", got)
	}
	if got := Truncate("héllo world", 5); got != "héllo…" {
		t.Fatalf("truncated: %q", got)
	}
}
