package scorer

import (
	"math"
	"testing"

	"feedrank/internal/config"
)

const now = int64(1_740_830_400)

func base() Features {
	return Features{
		CreatedAt:      now - 3600,
		Now:            now,
		LikeCount:      10,
		RetweetCount:   2,
		ReplyCount:     3,
		HoursSinceSeen: -1,
		NoveltyFactor:  1.2,
		RandomFactor:   0.5,
		AccountAgeDays: 400,
	}
}

func TestScoreMonotoneInEngagement(t *testing.T) {
	s := New(config.DefaultScorer())
	bump := []func(*Features){
		func(f *Features) { f.LikeCount += 50 },
		func(f *Features) { f.RetweetCount += 50 },
		func(f *Features) { f.ReplyCount += 50 },
		func(f *Features) { f.QuoteCount += 50 },
	}
	for i, b := range bump {
		f := base()
		lo := s.Score(f)
		b(&f)
		if hi := s.Score(f); hi < lo {
			t.Fatalf("bump %d lowered the score: %v -> %v", i, lo, hi)
		}
	}
}

func TestScoreRecencyDecays(t *testing.T) {
	s := New(config.DefaultScorer())
	prev := math.Inf(1)
	for _, ageHours := range []int64{0, 1, 6, 24, 72, 240} {
		f := base()
		f.CreatedAt = now - ageHours*3600
		f.LikeCount, f.RetweetCount, f.ReplyCount = 0, 0, 0
		got := s.Score(f)
		if got > prev {
			t.Fatalf("older post (%dh) scored higher: %v > %v", ageHours, got, prev)
		}
		prev = got
	}
}

func TestScoreClampsNegativeCounts(t *testing.T) {
	s := New(config.DefaultScorer())
	f := base()
	f.LikeCount, f.RetweetCount, f.ReplyCount = 0, 0, 0
	zero := s.Score(f)
	f.LikeCount, f.RetweetCount, f.ReplyCount, f.QuoteCount = -5, -100, -1, -7
	if got := s.Score(f); got != zero {
		t.Fatalf("negative counts: got %v want %v", got, zero)
	}
}

func TestScoreIsFiniteForNonFiniteInputs(t *testing.T) {
	s := New(config.DefaultScorer())
	f := base()
	f.NoveltyFactor = math.NaN()
	f.RandomFactor = math.Inf(1)
	f.SpamScore = math.NaN()
	f.EngagementVelocity = math.Inf(-1)
	f.HoursSinceSeen = math.NaN()
	got := s.Score(f)
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("non-finite score %v", got)
	}
}

func TestSpamSignalsLowerScore(t *testing.T) {
	s := New(config.DefaultScorer())
	clean := s.Score(base())
	penalties := map[string]func(*Features){
		"spam score":      func(f *Features) { f.SpamScore = 0.9 },
		"suspicious urls": func(f *Features) { f.SuspiciousURLCount = 2 },
		"many urls":       func(f *Features) { f.URLCount = 6 },
		"hashtags":        func(f *Features) { f.HashtagCount = 9 },
		"mentions":        func(f *Features) { f.MentionCount = 9 },
		"emoji":           func(f *Features) { f.EmojiDensity = 0.9 },
		"keywords":        func(f *Features) { f.SpamKeywordScore = 0.6 },
		"rt ratio":        func(f *Features) { f.RetweetLikeRatio = 1 },
		"timing":          func(f *Features) { f.AuthorTimingScore = 0.8 },
		"cluster":         func(f *Features) { f.ClusterSize = 12 },
		"blocked":         func(f *Features) { f.BlockedByCount = 30 },
		"muted":           func(f *Features) { f.MutedByCount = 30 },
		"community note":  func(f *Features) { f.HasCommunityNote = true },
		"new account":     func(f *Features) { f.AccountAgeDays = 0.5 },
		"author repeats":  func(f *Features) { f.AuthorRepeats = 3 },
		"content repeats": func(f *Features) { f.ContentRepeats = 2 },
		"recently seen":   func(f *Features) { f.HoursSinceSeen = 1 },
	}
	for name, apply := range penalties {
		f := base()
		apply(&f)
		if got := s.Score(f); got >= clean {
			t.Fatalf("%s did not lower the score: %v >= %v", name, got, clean)
		}
	}
}

func TestTrustSignalsRaiseScore(t *testing.T) {
	s := New(config.DefaultScorer())
	plain := s.Score(base())
	boosts := map[string]func(*Features){
		"verified":  func(f *Features) { f.UserVerified = true },
		"gold":      func(f *Features) { f.UserGold = true },
		"followers": func(f *Features) { f.FollowerCount = 100000 },
		"media":     func(f *Features) { f.HasMedia = true },
		"super":     func(f *Features) { f.SuperTweeterBoost = 50 },
	}
	for name, apply := range boosts {
		f := base()
		apply(&f)
		if got := s.Score(f); got <= plain {
			t.Fatalf("%s did not raise the score: %v <= %v", name, got, plain)
		}
	}
}

func TestAllSeenRelaxesSeenPenalty(t *testing.T) {
	s := New(config.DefaultScorer())
	f := base()
	f.HoursSinceSeen = 2
	f.NoveltyFactor = 1
	partial := s.Score(f)
	f.IsAllSeen = true
	if all := s.Score(f); all <= partial {
		t.Fatalf("all-seen batch should soften the seen penalty: %v <= %v", all, partial)
	}
}

func TestRandomFactorIsBounded(t *testing.T) {
	s := New(config.DefaultScorer())
	f := base()
	f.RandomFactor = 0.5
	mid := s.Score(f)
	for _, r := range []float64{0, 1} {
		f.RandomFactor = r
		got := s.Score(f)
		if math.Abs(got-mid) > mid*0.041 {
			t.Fatalf("random factor %v moved score too far: %v vs %v", r, got, mid)
		}
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	if !FromConfig(cfg).Enabled() {
		t.Fatalf("native scorer should be enabled")
	}
	cfg.Ranking.Scorer = "noop"
	sc := FromConfig(cfg)
	if sc.Enabled() || sc.Score(base()) != 0 {
		t.Fatalf("noop scorer should be disabled and score 0")
	}
}
