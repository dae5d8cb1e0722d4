// Package signals extracts content-derived metrics shared by the scorer and the
// spam analyzer: links, shortener domains, hashtags, mentions, emoji density,
// spam keywords, shouting and character runs.
package signals

import (
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"

	"feedrank/internal/config"
	"feedrank/internal/util"
)

var (
	hashtagPattern = regexp.MustCompile(`#[a-zA-Z0-9_]+`)
	mentionPattern = regexp.MustCompile(`@[a-zA-Z0-9_]+`)
)

var emojiRanges = []struct{ lo, hi rune }{
	{0x1F600, 0x1F64F},
	{0x1F300, 0x1F5FF},
	{0x1F680, 0x1F6FF},
	{0x1F900, 0x1F9FF},
	{0x2600, 0x26FF},
	{0x2700, 0x27BF},
}

// ContentMetrics is the per-post bundle the scorer consumes.
type ContentMetrics struct {
	URLCount           int
	SuspiciousURLCount int
	HashtagCount       int
	MentionCount       int
	EmojiDensity       float64
	SpamKeywordScore   float64
}

// Extractor holds the compiled domain and keyword lists. Safe for concurrent use.
type Extractor struct {
	domains  map[string]struct{}
	keywords []string
	matcher  *ahocorasick.Matcher
	hit      float64
}

// New compiles the lists in cfg.
func New(cfg config.SignalsConfig) *Extractor {
	domains := make(map[string]struct{}, len(cfg.SuspiciousDomains))
	for _, d := range cfg.SuspiciousDomains {
		domains[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	keywords := make([]string, 0, len(cfg.SpamKeywords))
	for _, k := range cfg.SpamKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	hit := cfg.KeywordHit
	if hit <= 0 {
		hit = 0.15
	}
	return &Extractor{
		domains:  domains,
		keywords: keywords,
		matcher:  ahocorasick.NewStringMatcher(keywords),
		hit:      hit,
	}
}

// Metrics computes every content metric for one post body.
func (e *Extractor) Metrics(content string) ContentMetrics {
	if content == "" {
		return ContentMetrics{}
	}
	urls, suspicious := e.URLMetrics(content)
	return ContentMetrics{
		URLCount:           urls,
		SuspiciousURLCount: suspicious,
		HashtagCount:       len(Hashtags(content)),
		MentionCount:       len(Mentions(content)),
		EmojiDensity:       EmojiDensity(content),
		SpamKeywordScore:   e.KeywordScore(content),
	}
}

// URLMetrics counts links and links pointing at a suspicious shortener.
func (e *Extractor) URLMetrics(content string) (total, suspicious int) {
	urls := util.FindURLs(content)
	for _, u := range urls {
		if e.IsSuspiciousURL(u) {
			suspicious++
		}
	}
	return len(urls), suspicious
}

// IsSuspiciousURL reports whether raw's host is a listed domain or a subdomain of one.
func (e *Extractor) IsSuspiciousURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	if _, ok := e.domains[host]; ok {
		return true
	}
	for d := range e.domains {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// KeywordHits returns the distinct spam keywords contained in content.
func (e *Extractor) KeywordHits(content string) []string {
	if content == "" || len(e.keywords) == 0 {
		return nil
	}
	idx := e.matcher.MatchThreadSafe([]byte(strings.ToLower(content)))
	seen := make(map[int]struct{}, len(idx))
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, e.keywords[i])
	}
	return out
}

// KeywordScore adds a fixed increment per distinct keyword hit, capped at 1.
func (e *Extractor) KeywordScore(content string) float64 {
	return math.Min(1, float64(len(e.KeywordHits(content)))*e.hit)
}

// Hashtags returns the lowercased hashtags in content.
func Hashtags(content string) []string {
	return lowerAll(hashtagPattern.FindAllString(content, -1))
}

// Mentions returns the lowercased @mentions in content.
func Mentions(content string) []string {
	return lowerAll(mentionPattern.FindAllString(content, -1))
}

// EmojiDensity is the emoji count relative to the text length, in [0,1].
func EmojiDensity(content string) float64 {
	emojis, nonSpace := 0, 0
	for _, r := range content {
		if unicode.IsSpace(r) {
			continue
		}
		nonSpace++
		if isEmoji(r) {
			emojis++
		}
	}
	if nonSpace == 0 {
		return 0
	}
	return math.Min(1, float64(emojis)/math.Max(15, float64(nonSpace)/4))
}

// CapsRatio is the share of uppercase letters among letters, with the letter count.
func CapsRatio(content string) (ratio float64, letters int) {
	upper := 0
	for _, r := range content {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0, 0
	}
	return float64(upper) / float64(letters), letters
}

// RepeatedCharRatio is the share of runes that sit in runs of at least minRun
// identical characters ("sooooo", "!!!!!").
func RepeatedCharRatio(content string, minRun int) float64 {
	r := []rune(content)
	if len(r) == 0 || minRun < 2 {
		return 0
	}
	inRuns := 0
	for i := 0; i < len(r); {
		j := i + 1
		for j < len(r) && r[j] == r[i] {
			j++
		}
		if n := j - i; n >= minRun && !unicode.IsSpace(r[i]) {
			inRuns += n
		}
		i = j
	}
	return float64(inRuns) / float64(len(r))
}

func isEmoji(r rune) bool {
	for _, rg := range emojiRanges {
		if r >= rg.lo && r <= rg.hi {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	for i := range in {
		in[i] = strings.ToLower(in[i])
	}
	return in
}
