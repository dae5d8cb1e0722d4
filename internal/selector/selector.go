// Package selector turns a batch of candidate posts into a display order:
// batch-wide repeat counts feed the scorer, then a greedy constrained pass
// picks the head of the feed while penalising repeated authors and content.
package selector

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"time"

	"feedrank/internal/config"
	"feedrank/internal/metrics"
	"feedrank/internal/model"
	"feedrank/internal/scorer"
	"feedrank/internal/signals"
	"feedrank/internal/util"
)

// Rand is the randomness the selector draws on. *rand.Rand from math/rand/v2
// satisfies it; tests inject fixed draws.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// Ranking is the result of one Rank call.
type Ranking struct {
	// Posts holds the curated head followed by the rest in score order.
	Posts []model.Post
	// Limit is the number of curated head slots.
	Limit int
}

// Head returns the curated display slots.
func (r Ranking) Head() []model.Post { return r.Posts[:r.Limit] }

// IDs returns post ids in output order.
func (r Ranking) IDs() []string {
	ids := make([]string, len(r.Posts))
	for i, p := range r.Posts {
		ids[i] = p.ID
	}
	return ids
}

// Selector ranks batches. It holds no per-call state and is safe for concurrent
// use as long as its Rand is.
type Selector struct {
	scorer  scorer.Interface
	signals *signals.Extractor
	cfg     config.SelectorConfig
	rng     Rand
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*Selector)

func WithRand(r Rand) Option                { return func(s *Selector) { s.rng = r } }
func WithClock(now func() time.Time) Option { return func(s *Selector) { s.now = now } }
func WithLogger(l *slog.Logger) Option      { return func(s *Selector) { s.logger = l } }

func New(sc scorer.Interface, ex *signals.Extractor, cfg config.SelectorConfig, opts ...Option) *Selector {
	s := &Selector{
		scorer:  sc,
		signals: ex,
		cfg:     cfg,
		rng:     globalRand{},
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// candidate is a post with the batch context and score it was ranked with.
type candidate struct {
	post      model.Post
	rank      int // position in score order
	author    string
	content   string
	hoursSeen float64
	score     float64
}

// Rank orders posts for display. limit 0 means no explicit limit. An empty
// batch yields an empty ranking; a disabled scorer keeps input order.
func (s *Selector) Rank(posts []model.Post, seen model.SeenMap, limit int) Ranking {
	start := time.Now()
	metrics.RankRequests.Inc()
	defer metrics.ObserveRankDuration(start)

	if len(posts) == 0 {
		return Ranking{Posts: []model.Post{}}
	}
	if s.scorer == nil || !s.scorer.Enabled() {
		metrics.RankFallbacks.Inc()
		return Ranking{Posts: slices.Clone(posts), Limit: s.resolveLimit(limit, len(posts))}
	}

	now := s.now()
	scored := s.scoreBatch(posts, seen, now)
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	for i := range scored {
		scored[i].rank = i
	}

	limit = s.resolveLimit(limit, len(scored))
	pool := min(len(scored), max(limit*s.cfg.PoolMultiplier, s.cfg.MinPool))
	selected := s.pick(scored[:pool], limit)

	taken := make([]bool, len(scored))
	for _, c := range selected {
		taken[c.rank] = true
	}
	for i := 0; len(selected) < limit && i < len(scored); i++ {
		if !taken[i] {
			taken[i] = true
			selected = append(selected, &scored[i])
		}
	}
	var remainder []*candidate
	for i := range scored {
		if !taken[i] {
			remainder = append(remainder, &scored[i])
		}
	}

	s.reshuffle(selected)
	remainder = separateTop(selected, remainder)

	out := make([]model.Post, 0, len(scored))
	for _, c := range selected {
		out = append(out, c.post)
	}
	for _, c := range remainder {
		out = append(out, c.post)
	}
	s.logger.Debug("ranked batch", "posts", len(posts), "limit", limit, "pool", pool, "duration", time.Since(start))
	return Ranking{Posts: out, Limit: limit}
}

// resolveLimit defaults a missing (zero) limit to min(DefaultLimit, n) and
// otherwise clamps it to [1, MaxLimit] and to the batch size, so negative
// limits select a single post.
func (s *Selector) resolveLimit(limit, n int) int {
	if limit == 0 {
		return min(s.cfg.DefaultLimit, n)
	}
	return min(max(limit, 1), s.cfg.MaxLimit, n)
}

func (s *Selector) scoreBatch(posts []model.Post, seen model.SeenMap, now time.Time) []candidate {
	authorCounts := make(map[string]int)
	contentCounts := make(map[string]int)
	out := make([]candidate, len(posts))
	allSeen := true
	for i, p := range posts {
		c := candidate{
			post:      p,
			author:    p.AuthorKey(),
			content:   util.NormalizeContent(p.Content),
			hoursSeen: hoursSinceSeen(seen, p.ID, now),
		}
		if c.author != "" {
			authorCounts[c.author]++
		}
		if c.content != "" {
			contentCounts[c.content]++
		}
		if _, ok := seen[p.ID]; !ok {
			allSeen = false
		}
		out[i] = c
	}
	for i := range out {
		c := &out[i]
		authorRepeats := max(0, authorCounts[c.author]-1)
		contentRepeats := max(0, contentCounts[c.content]-1)
		f := s.features(c, now, authorRepeats, contentRepeats, allSeen)
		c.score = s.adjust(c.post, s.scorer.Score(f))
	}
	return out
}

func (s *Selector) features(c *candidate, now time.Time, authorRepeats, contentRepeats int, allSeen bool) scorer.Features {
	p := c.post
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}
	cm := s.signals.Metrics(p.Content)
	timing := p.AuthorTimingScore
	if timing == 0 {
		timing = p.Author.TimingScore
	}
	return scorer.Features{
		CreatedAt:          created.Unix(),
		Now:                now.Unix(),
		LikeCount:          p.LikeCount,
		RetweetCount:       p.RetweetCount,
		ReplyCount:         p.ReplyCount,
		QuoteCount:         p.QuoteCount,
		HasMedia:           p.HasMedia(),
		IsVideo:            p.HasVideo(),
		HoursSinceSeen:     c.hoursSeen,
		AuthorRepeats:      authorRepeats,
		ContentRepeats:     contentRepeats,
		NoveltyFactor:      s.novelty(c.hoursSeen),
		RandomFactor:       s.rng.Float64(),
		IsAllSeen:          allSeen,
		PositionInFeed:     p.PositionInFeed,
		UserVerified:       p.Author.Verified,
		UserGold:           p.Author.Gold,
		FollowerCount:      p.Author.FollowerCount,
		HasCommunityNote:   p.HasCommunityNote,
		SuperTweeterBoost:  s.superBoost(p),
		BlockedByCount:     p.Author.BlockedByCount,
		MutedByCount:       p.Author.MutedByCount,
		SpamScore:          p.Author.SpamScore,
		AccountAgeDays:     p.Author.AccountAgeDays(now),
		URLCount:           cm.URLCount,
		SuspiciousURLCount: cm.SuspiciousURLCount,
		HashtagCount:       cm.HashtagCount,
		MentionCount:       cm.MentionCount,
		EmojiDensity:       cm.EmojiDensity,
		AuthorTimingScore:  timing,
		ClusterSize:        p.ClusterSize,
		SpamKeywordScore:   cm.SpamKeywordScore,
		RetweetLikeRatio:   model.RetweetLikeRatio(p.RetweetCount, p.LikeCount),
		EngagementVelocity: model.EngagementVelocity(p, now),
	}
}

func (s *Selector) novelty(hoursSeen float64) float64 {
	switch {
	case hoursSeen < 0:
		return s.cfg.NoveltyUnseen
	case hoursSeen > s.cfg.StaleAfterHours:
		return s.cfg.NoveltyStale
	default:
		return 1
	}
}

// superBoost is the larger of the author-level and post-level boosts.
func (s *Selector) superBoost(p model.Post) float64 {
	var user, post float64
	if p.Author.SuperTweeter {
		user = orDefault(p.Author.SuperTweeterBoost, s.cfg.DefaultSuperBoost)
	}
	if p.SuperTweet {
		post = orDefault(p.SuperTweetBoost, s.cfg.DefaultSuperBoost)
	}
	return math.Max(user, post)
}

// adjust applies the post-score corrections: a cut for reply-ratioed posts and a
// small logarithmic lift for well-followed authors.
func (s *Selector) adjust(p model.Post, score float64) float64 {
	if p.ReplyCount > s.cfg.RatioCutReplies && p.ReplyCount > p.LikeCount*2 {
		score = weigh(score, s.cfg.RatioCutFactor)
	}
	if f := p.Author.FollowerCount; f > 0 {
		score = weigh(score, 1+math.Log10(float64(f)+1)*s.cfg.FollowerLogBoost)
	}
	return score
}

// pick greedily fills limit slots from pool, re-evaluating penalties after every pick.
func (s *Selector) pick(pool []candidate, limit int) []*candidate {
	used := make([]bool, len(pool))
	authorPicks := make(map[string]int)
	contentUsed := make(map[string]bool)
	out := make([]*candidate, 0, limit)
	for len(out) < limit {
		best, bestVal := -1, math.Inf(-1)
		for j := range pool {
			if used[j] {
				continue
			}
			c := &pool[j]
			val := weigh(c.score, 1+(2*s.rng.Float64()-1)*s.cfg.Jitter)
			if c.content != "" && contentUsed[c.content] {
				if len(out) < s.cfg.StrictSlots {
					val = weigh(val, s.cfg.EarlyContentPen)
				} else {
					val = weigh(val, s.cfg.LateContentPen)
				}
			}
			if c.author != "" {
				n := authorPicks[c.author]
				if n >= s.cfg.AuthorSoftCap {
					val = weigh(val, s.cfg.AuthorSoftPen)
				}
				if n > s.cfg.AuthorHardCap {
					val = weigh(val, s.cfg.AuthorHardPen)
				}
			}
			val = weigh(val, s.seenFactor(c.hoursSeen))
			if val > bestVal {
				best, bestVal = j, val
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		c := &pool[best]
		out = append(out, c)
		if c.author != "" {
			authorPicks[c.author]++
		}
		if c.content != "" {
			contentUsed[c.content] = true
		}
	}
	return out
}

// seenFactor mildly prefers posts seen a while ago over both just-seen and
// never-seen posts, pulling against the scorer's novelty boost.
func (s *Selector) seenFactor(hoursSeen float64) float64 {
	if hoursSeen < 0 {
		return s.cfg.NeverSeenFactor
	}
	return math.Min(s.cfg.SeenMax, s.cfg.SeenFloor+hoursSeen*s.cfg.SeenRecovery)
}

// reshuffle swaps each of the first ReshuffleSlots picks with a random slot at
// most ReshuffleSpan-1 positions further down.
func (s *Selector) reshuffle(selected []*candidate) {
	slots := min(len(selected), s.cfg.ReshuffleSlots)
	for i := 0; i < slots; i++ {
		span := min(s.cfg.ReshuffleSpan, len(selected)-i)
		if span <= 1 {
			continue
		}
		if j := i + s.rng.IntN(span); j != i {
			selected[i], selected[j] = selected[j], selected[i]
		}
	}
}

// separateTop makes sure the first two slots differ in author and content. A
// conflicting second slot is replaced by the best unselected post that does not
// conflict, then by a later head slot, and as a last resort by any post from a
// different author. The displaced post goes back into the remainder.
func separateTop(selected, remainder []*candidate) []*candidate {
	if len(selected) < 2 || !conflicts(selected[0], selected[1]) {
		return remainder
	}
	first := selected[0]
	if i := slices.IndexFunc(remainder, func(c *candidate) bool { return !conflicts(first, c) }); i >= 0 {
		return spliceSecond(selected, remainder, i)
	}
	if k := indexFrom(selected, 2, func(c *candidate) bool { return !conflicts(first, c) }); k >= 0 {
		selected[1], selected[k] = selected[k], selected[1]
		return remainder
	}
	if !sameAuthor(first, selected[1]) {
		return remainder
	}
	otherAuthor := func(c *candidate) bool { return !sameAuthor(first, c) }
	if i := slices.IndexFunc(remainder, otherAuthor); i >= 0 {
		return spliceSecond(selected, remainder, i)
	}
	if k := indexFrom(selected, 2, otherAuthor); k >= 0 {
		selected[1], selected[k] = selected[k], selected[1]
	}
	return remainder
}

// spliceSecond moves remainder[i] into slot 1 and files the displaced post back
// into the remainder by score order.
func spliceSecond(selected, remainder []*candidate, i int) []*candidate {
	displaced := selected[1]
	selected[1] = remainder[i]
	remainder = slices.Delete(remainder, i, i+1)
	at, _ := slices.BinarySearchFunc(remainder, displaced.rank, func(c *candidate, rank int) int { return c.rank - rank })
	return slices.Insert(remainder, at, displaced)
}

func indexFrom(s []*candidate, from int, f func(*candidate) bool) int {
	for k := from; k < len(s); k++ {
		if f(s[k]) {
			return k
		}
	}
	return -1
}

func conflicts(a, b *candidate) bool {
	return sameAuthor(a, b) || (a.content != "" && a.content == b.content)
}

func sameAuthor(a, b *candidate) bool { return a.author != "" && a.author == b.author }

// weigh scales score by factor so that factor < 1 always lowers the value, even
// for negative scores.
func weigh(score, factor float64) float64 {
	if score >= 0 || factor == 0 {
		return score * factor
	}
	return score / factor
}

func orDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
