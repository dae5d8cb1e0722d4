// Package scorer computes the relevance score of a single candidate post.
//
// Score is pure: everything it needs, including the random draw, arrives in
// Features. Callers that want varied orderings re-roll RandomFactor per call.
package scorer

import (
	"math"
	"time"

	"feedrank/internal/config"
)

// Features is the full input of one scoring call. Counts below zero are read as zero.
type Features struct {
	CreatedAt int64 // unix seconds
	Now       int64 // unix seconds; 0 reads the wall clock

	LikeCount    int
	RetweetCount int
	ReplyCount   int
	QuoteCount   int
	HasMedia     bool
	IsVideo      bool

	// HoursSinceSeen is -1 when the viewer never saw the post.
	HoursSinceSeen float64
	AuthorRepeats  int
	ContentRepeats int
	NoveltyFactor  float64
	RandomFactor   float64
	IsAllSeen      bool
	PositionInFeed int

	UserVerified      bool
	UserGold          bool
	FollowerCount     int
	HasCommunityNote  bool
	SuperTweeterBoost float64
	BlockedByCount    int
	MutedByCount      int
	SpamScore         float64
	AccountAgeDays    float64

	URLCount           int
	SuspiciousURLCount int
	HashtagCount       int
	MentionCount       int
	EmojiDensity       float64
	AuthorTimingScore  float64
	ClusterSize        int
	SpamKeywordScore   float64
	RetweetLikeRatio   float64
	EngagementVelocity float64
}

// Interface is what the selector needs from a scorer.
type Interface interface {
	Score(f Features) float64
	// Enabled is false for the degraded no-op scorer.
	Enabled() bool
}

// Scorer is the in-process relevance scorer.
type Scorer struct {
	cfg config.ScorerConfig
}

func New(cfg config.ScorerConfig) *Scorer { return &Scorer{cfg: cfg} }

func (s *Scorer) Enabled() bool { return true }

// Score returns a finite relevance score. It is non-decreasing in engagement and
// recency and non-increasing in every spam and staleness signal.
func (s *Scorer) Score(f Features) float64 {
	c := s.cfg
	now := f.Now
	if now == 0 {
		now = time.Now().Unix()
	}
	ageHours := math.Max(0, float64(now-f.CreatedAt)/3600)

	score := c.RecencyBase * math.Exp(-ageHours/positive(c.RecencyTauHours, 24))
	score += c.LikeWeight * damp(f.LikeCount)
	score += c.RetweetWeight * damp(f.RetweetCount)
	score += c.ReplyWeight * damp(f.ReplyCount)
	score += c.QuoteWeight * damp(f.QuoteCount)
	if f.HasMedia {
		score += c.MediaBonus
	}
	if f.IsVideo {
		score += c.VideoBonus
	}
	score += c.VelocityWeight * math.Log1p(clamp(finite(f.EngagementVelocity), 0, 10))
	score += math.Max(0, finite(f.SuperTweeterBoost))
	score -= c.PositionWeight * float64(max(0, f.PositionInFeed))

	score *= s.freshness(f)
	score *= s.trust(f)
	score *= s.patterns(f)
	score *= 1 / (1 + c.AuthorRepeatWeight*float64(max(0, f.AuthorRepeats)))
	score *= 1 / (1 + c.ContentRepeatWeight*float64(max(0, f.ContentRepeats)))
	score *= 1 + (clamp(finite(f.RandomFactor), 0, 1)-0.5)*2*c.RandomAmplitude

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// freshness combines the caller's novelty factor with a penalty for recently seen posts.
// When the whole batch was seen the novelty spread widens and the seen penalty relaxes.
func (s *Scorer) freshness(f Features) float64 {
	c := s.cfg
	novelty := finite(f.NoveltyFactor)
	if novelty <= 0 {
		novelty = 1
	}
	if f.IsAllSeen {
		novelty = 1 + (novelty-1)*c.AllSeenNoveltyGain
	}
	m := math.Max(novelty, 0.1)
	if h := finite(f.HoursSinceSeen); h >= 0 {
		recovered := math.Min(1, h/positive(c.SeenRecoveryHours, 72))
		p := c.SeenPenalty + (1-c.SeenPenalty)*recovered
		if f.IsAllSeen {
			p = math.Sqrt(p)
		}
		m *= p
	}
	return m
}

func (s *Scorer) trust(f Features) float64 {
	c := s.cfg
	m := 1.0
	if f.UserVerified {
		m *= c.VerifiedBoost
	}
	if f.UserGold {
		m *= c.GoldBoost
	}
	m *= 1 + c.FollowerLogWeight*math.Log10(1+float64(max(0, f.FollowerCount)))
	if f.HasCommunityNote {
		m *= c.CommunityNotePenalty
	}
	m /= 1 + c.BlockedWeight*float64(max(0, f.BlockedByCount))
	m /= 1 + c.MutedWeight*float64(max(0, f.MutedByCount))
	m *= 1 - c.SpamScoreWeight*clamp(finite(f.SpamScore), 0, 1)
	m *= s.ageFactor(math.Max(0, finite(f.AccountAgeDays)))
	return math.Max(m, 0)
}

func (s *Scorer) ageFactor(days float64) float64 {
	for _, t := range s.cfg.AgeTiers {
		if t.MaxDays <= 0 || days < t.MaxDays {
			return t.Factor
		}
	}
	return 1
}

func (s *Scorer) patterns(f Features) float64 {
	c := s.cfg
	floor := c.PatternFloor
	m := math.Pow(c.SuspiciousURLFactor, float64(max(0, f.SuspiciousURLCount)))
	m *= excess(f.URLCount, c.URLFree, c.URLFactor, floor)
	m *= excess(f.HashtagCount, c.HashtagFree, c.HashtagFactor, floor)
	m *= excess(f.MentionCount, c.MentionFree, c.MentionFactor, floor)
	if d := clamp(finite(f.EmojiDensity), 0, 1); d > c.EmojiFree {
		m *= math.Max(0.5, 1-(d-c.EmojiFree))
	}
	m *= 1 - c.KeywordWeight*clamp(finite(f.SpamKeywordScore), 0, 1)
	if r := clamp(finite(f.RetweetLikeRatio), 0, 1); r > c.RatioFree {
		m *= math.Max(0.5, 1-(r-c.RatioFree))
	}
	m *= 1 - c.TimingWeight*clamp(finite(f.AuthorTimingScore), 0, 1)
	if f.ClusterSize > c.ClusterFree {
		m /= 1 + c.ClusterWeight*float64(f.ClusterSize-c.ClusterFree)
	}
	return math.Max(m, 0)
}

// excess applies factor once per unit above free, never dropping below floor.
func excess(n, free int, factor, floor float64) float64 {
	if n <= free {
		return 1
	}
	return math.Max(floor, math.Pow(factor, float64(n-free)))
}

func damp(n int) float64 { return math.Log1p(float64(max(0, n))) }

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 { return math.Min(hi, math.Max(lo, v)) }

func positive(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

// Noop is the degraded scorer used when ranking is switched off; the selector
// keeps input order when it sees it.
type Noop struct{}

func (Noop) Score(Features) float64 { return 0 }
func (Noop) Enabled() bool          { return false }

// FromConfig picks the scorer named by cfg.Ranking.Scorer.
func FromConfig(cfg config.Config) Interface {
	if cfg.Ranking.Scorer == "noop" {
		return Noop{}
	}
	return New(cfg.Scorer)
}
