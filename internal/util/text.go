package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	urlPattern = regexp.MustCompile(`(?i)https?://\S+`)
)

// NormalizeWhitespace trims and collapses whitespace to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// NormalizeContent is the batch dedup key: lowercased, URLs stripped, whitespace collapsed.
func NormalizeContent(s string) string {
	if s == "" {
		return ""
	}
	return NormalizeWhitespace(urlPattern.ReplaceAllString(strings.ToLower(s), ""))
}

// NormalizeForSpam is stricter than NormalizeContent: it also strips diacritics,
// punctuation and symbols so trivially varied copies collapse to one key.
func NormalizeForSpam(s string) string {
	if s == "" {
		return ""
	}
	s = urlPattern.ReplaceAllString(strings.ToLower(s), "")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
	return NormalizeWhitespace(s)
}

// StripURLs removes http(s) links.
func StripURLs(s string) string {
	return urlPattern.ReplaceAllString(s, "")
}

// FindURLs returns every http(s) link in s.
func FindURLs(s string) []string {
	return urlPattern.FindAllString(s, -1)
}

// Tokenize lowercases s and splits it into words. Tokens are runs of letters,
// digits and the characters #, @, _ and ', so hashtags and mentions stay whole
// and punctuation or emoji alone never form a word.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch r {
		case '#', '@', '_', '\'':
			return false
		}
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// CharNGrams returns the set of rune n-grams of s. Strings shorter than n yield
// themselves as a single gram.
func CharNGrams(s string, n int) map[string]struct{} {
	out := make(map[string]struct{})
	r := []rune(s)
	if len(r) == 0 {
		return out
	}
	if n <= 0 || len(r) < n {
		out[s] = struct{}{}
		return out
	}
	for i := 0; i+n <= len(r); i++ {
		out[string(r[i:i+n])] = struct{}{}
	}
	return out
}

// Jaccard returns |a∩b| / |a∪b|; 0 when both are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Truncate shortens s to n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
