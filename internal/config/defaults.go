package config

import "time"

// Indicator names used as keys in SpamConfig.Weights and BotConfig.High.
const (
	IndicatorDuplicate     = "duplicate_content"
	IndicatorNearDuplicate = "near_duplicate"
	IndicatorFrequency     = "posting_frequency"
	IndicatorTiming        = "timing_regularity"
	IndicatorURL           = "url_spam"
	IndicatorHashtag       = "hashtag_spam"
	IndicatorMention       = "mention_spam"
	IndicatorQuality       = "content_quality"
	IndicatorReply         = "reply_spam"
	IndicatorEngagement    = "engagement_manipulation"
	IndicatorAccount       = "account_behavior"
	IndicatorBot           = "bot_signal"
)

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Ranking:    RankingConfig{Scorer: "native"},
		Scorer:     DefaultScorer(),
		Selector:   DefaultSelector(),
		Signals:    DefaultSignals(),
		Spam:       DefaultSpam(),
		Moderation: ModerationConfig{Enabled: true, ShadowbanThreshold: 0.95, Reason: "Automated: High Spam Score", ModeratorID: "system", MaxPerHour: 50, MaxPerDay: 500},
		Sweep:      SweepConfig{Interval: 15 * time.Minute, Lookback: 24 * time.Hour, RPS: 20, Burst: 5},
		Storage:    StorageConfig{DBPath: "./feedrank.db"},
		Logging:    LoggingConfig{Level: "info", Format: "text"},
		Metrics:    MetricsConfig{Addr: ""},
	}
}

// DefaultScorer returns the empirically tuned scoring coefficients.
func DefaultScorer() ScorerConfig {
	return ScorerConfig{
		RecencyBase:     100,
		RecencyTauHours: 24,
		LikeWeight:      8,
		RetweetWeight:   10,
		ReplyWeight:     6,
		QuoteWeight:     8,
		MediaBonus:      4,
		VideoBonus:      3,
		VelocityWeight:  5,
		PositionWeight:  0,
		RandomAmplitude: 0.04,

		AllSeenNoveltyGain: 2,
		SeenPenalty:        0.5,
		SeenRecoveryHours:  72,

		VerifiedBoost:        1.15,
		GoldBoost:            1.25,
		FollowerLogWeight:    0.03,
		CommunityNotePenalty: 0.6,
		BlockedWeight:        0.05,
		MutedWeight:          0.02,
		SpamScoreWeight:      0.8,
		AgeTiers: []AgeTier{
			{MaxDays: 1, Factor: 0.6},
			{MaxDays: 7, Factor: 0.8},
			{MaxDays: 30, Factor: 0.92},
			{MaxDays: 365, Factor: 1},
			{MaxDays: 1095, Factor: 1.04},
			{MaxDays: 0, Factor: 1.08},
		},

		SuspiciousURLFactor: 0.55,
		URLFree:             2,
		URLFactor:           0.85,
		HashtagFree:         3,
		HashtagFactor:       0.85,
		MentionFree:         4,
		MentionFactor:       0.85,
		PatternFloor:        0.3,
		EmojiFree:           0.3,
		KeywordWeight:       0.6,
		RatioFree:           0.5,
		TimingWeight:        0.5,
		ClusterFree:         2,
		ClusterWeight:       0.15,
		AuthorRepeatWeight:  0.35,
		ContentRepeatWeight: 0.6,
	}
}

// DefaultSelector returns the default selection tunables.
func DefaultSelector() SelectorConfig {
	return SelectorConfig{
		DefaultLimit:      10,
		MaxLimit:          60,
		PoolMultiplier:    3,
		MinPool:           20,
		NoveltyUnseen:     1.2,
		NoveltyStale:      1.05,
		StaleAfterHours:   72,
		DefaultSuperBoost: 50,
		RatioCutReplies:   5,
		RatioCutFactor:    0.5,
		FollowerLogBoost:  0.02,
		Jitter:            0.05,
		StrictSlots:       3,
		EarlyContentPen:   0.12,
		LateContentPen:    0.8,
		AuthorSoftCap:     2,
		AuthorSoftPen:     0.5,
		AuthorHardCap:     3,
		AuthorHardPen:     0.3,
		NeverSeenFactor:   0.97,
		SeenFloor:         0.6,
		SeenRecovery:      0.03,
		SeenMax:           1.05,
		ReshuffleSlots:    4,
		ReshuffleSpan:     2,
	}
}

// DefaultSignals returns the shortener list and spam keyword list.
func DefaultSignals() SignalsConfig {
	return SignalsConfig{
		SuspiciousDomains: []string{
			"bit.ly", "tinyurl.com", "goo.gl", "ow.ly", "t.co", "is.gd", "cli.gs",
			"tiny.cc", "cutt.ly", "rb.gy", "shorturl.at", "adf.ly", "ouo.io", "linktr.ee",
		},
		SpamKeywords: []string{
			"free money", "click here", "limited time", "act now", "buy now",
			"make money fast", "earn cash", "100% free", "no credit card", "winner",
			"you won", "congratulations", "exclusive offer", "special promotion", "dm for",
			"dm me", "check bio", "link in bio", "crypto giveaway", "airdrop", "nft drop",
			"whitelist", "presale", "pump", "moon", "lambo", "10x", "100x", "1000x",
			"guaranteed profit", "passive income", "work from home", "be your own boss",
			"financial freedom", "get rich", "s3x", "xxx", "onlyfans", "subscribe to my",
			"follow for follow", "f4f", "like4like", "retweet to win", "rt to win",
			"cashapp", "paypal me", "venmo me", "send btc", "send eth",
		},
		KeywordHit: 0.15,
	}
}

// DefaultSpam returns the default spam analyzer weights and thresholds.
func DefaultSpam() SpamConfig {
	tag := TagConfig{
		Window:            60,
		AvgTiers:          []Tier{{Min: 5, Score: 1}, {Min: 3, Score: 0.6}, {Min: 2, Score: 0.3}},
		MaxPerPost:        10,
		MaxScore:          0.7,
		LowDiversityMin:   3,
		LowDiversityRatio: 0.5,
		LowDiversityPosts: 3,
		LowDiversityBonus: 0.2,
	}
	return SpamConfig{
		MinPosts:  5,
		Steepness: 10,
		Midpoint:  0.45,
		Weights: map[string]float64{
			IndicatorDuplicate:     2,
			IndicatorNearDuplicate: 1.5,
			IndicatorFrequency:     1.5,
			IndicatorTiming:        1.5,
			IndicatorURL:           1,
			IndicatorHashtag:       1,
			IndicatorMention:       1,
			IndicatorQuality:       1,
			IndicatorReply:         1,
			IndicatorEngagement:    1,
			IndicatorAccount:       1.5,
			IndicatorBot:           2,
		},
		PostWindow:          200,
		OriginalWindow:      200,
		ReplyWindow:         60,
		ImpactHalfLifeHours: 72,

		Duplicate: DuplicateConfig{
			Window:         60,
			Tiers:          []Tier{{Min: 0.75, Score: 1}, {Min: 0.6, Score: 0.8}, {Min: 0.4, Score: 0.5}},
			RepeatOverride: 8,
			OverrideScore:  0.9,
		},
		NearDuplicate: NearDuplicateConfig{
			Window:     40,
			NGram:      3,
			Similarity: 0.7,
			MinPosts:   3,
			Tiers:      []Tier{{Min: 0.5, Score: 1}, {Min: 0.3, Score: 0.7}, {Min: 0.15, Score: 0.4}},
		},
		Frequency: FrequencyConfig{
			Hour:               []Tier{{Min: 21, Score: 1}, {Min: 11, Score: 0.7}, {Min: 6, Score: 0.4}},
			SixHours:           []Tier{{Min: 61, Score: 1}, {Min: 31, Score: 0.6}},
			Day:                []Tier{{Min: 151, Score: 1}, {Min: 81, Score: 0.6}, {Min: 41, Score: 0.3}},
			DecayHalfLifeHours: 6,
			DecayCap:           40,
			DecayScale:         0.8,
		},
		Timing: TimingConfig{
			Window:       50,
			MinIntervals: 5,
			Rules: []TimingRule{
				{MaxCoV: 0.15, MaxMean: 2 * time.Minute, Score: 1},
				{MaxCoV: 0.25, MaxMean: 5 * time.Minute, Score: 0.7},
				{MaxCoV: 0.35, MaxMean: 5 * time.Minute, Score: 0.4},
				{MaxCoV: 0.15, MaxMean: 0, Score: 0.2},
			},
		},
		URL: URLConfig{
			Window:         60,
			AvgTiers:       []Tier{{Min: 3, Score: 1}, {Min: 2, Score: 0.7}},
			RatioTiers:     []Tier{{Min: 0.9, Score: 0.6}, {Min: 0.7, Score: 0.4}},
			RatioMinPosts:  10,
			SuspiciousStep: 0.08,
			SuspiciousCap:  0.4,
		},
		Hashtag: tag,
		Mention: MentionConfig{
			TagConfig:       tag,
			RepetitiveMin:   10,
			RepetitiveRatio: 0.3,
			RepetitiveScore: 0.6,
		},
		Quality: QualityConfig{
			Window:          60,
			RepeatRun:       4,
			RepeatRatio:     0.3,
			CapsRatio:       0.7,
			CapsMinLetters:  10,
			EmojiDensity:    0.5,
			KeywordScore:    0.45,
			LowRatioTiers:   []Tier{{Min: 0.7, Score: 1}, {Min: 0.5, Score: 0.7}, {Min: 0.3, Score: 0.4}},
			ShortWords:      3,
			ShortMinPosts:   10,
			ShortBonus:      0.2,
			KeywordAvgScale: 0.5,
		},
		Reply: ReplyConfig{
			MinReplies:         5,
			DuplicateTiers:     []Tier{{Min: 0.5, Score: 1}, {Min: 0.3, Score: 0.6}, {Min: 0.15, Score: 0.3}},
			SprayMinReplies:    20,
			SprayDiversity:     0.9,
			SprayDuplicate:     0.3,
			SprayBonus:         0.2,
			FixationMinReplies: 20,
			FixationDiversity:  0.2,
			FixationScore:      0.5,
		},
		Engagement: EngagementConfig{
			Gates: []EngagementGate{
				{Window: 6 * time.Hour, MinPosts: 10, Tiers: []Tier{{Min: 0.9, Score: 0.9}, {Min: 0.75, Score: 0.5}}},
				{Window: 24 * time.Hour, MinPosts: 20, Tiers: []Tier{{Min: 0.9, Score: 0.7}, {Min: 0.75, Score: 0.4}}},
				{Window: 0, MinPosts: 50, Tiers: []Tier{{Min: 0.95, Score: 0.5}, {Min: 0.85, Score: 0.25}}},
			},
		},
		Account: AccountConfig{
			AgeVolume: []AgeVolumeRule{
				{MaxAgeDays: 1, MinPosts: 50, Score: 1},
				{MaxAgeDays: 7, MinPosts: 200, Score: 0.8},
				{MaxAgeDays: 30, MinPosts: 1000, Score: 0.6},
			},
			PostsPerDay:      100,
			PostsPerDayScore: 0.7,
			FollowingMin:     1000,
			FollowingRatio:   10,
			FollowingScore:   0.6,
			LonelyFollowing:  500,
			LonelyFollowers:  10,
			LonelyScore:      0.5,
			SilentFollowers:  5,
			SilentPosts:      500,
			SilentScore:      0.5,
			FollowerNullify:  100,
		},
		Bot: BotConfig{
			High: map[string]float64{
				IndicatorDuplicate:     0.5,
				IndicatorNearDuplicate: 0.4,
				IndicatorFrequency:     0.6,
				IndicatorTiming:        0.7,
				IndicatorURL:           0.6,
				IndicatorMention:       0.6,
				IndicatorEngagement:    0.7,
				IndicatorAccount:       0.6,
				IndicatorQuality:       0.6,
			},
			Tiers: []Tier{{Min: 5, Score: 1}, {Min: 4, Score: 0.8}, {Min: 3, Score: 0.6}, {Min: 2, Score: 0.35}},
		},
	}
}
