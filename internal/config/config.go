package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures ranking weights, spam heuristics, moderation policy and storage.
type Config struct {
	Ranking    RankingConfig    `yaml:"ranking"`
	Scorer     ScorerConfig     `yaml:"scorer"`
	Selector   SelectorConfig   `yaml:"selector"`
	Signals    SignalsConfig    `yaml:"signals"`
	Spam       SpamConfig       `yaml:"spam"`
	Moderation ModerationConfig `yaml:"moderation"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type RankingConfig struct {
	// "native" runs the in-process scorer, "noop" keeps input order.
	Scorer string `yaml:"scorer"`
}

// ScorerConfig holds every coefficient of the per-post relevance score.
type ScorerConfig struct {
	RecencyBase     float64 `yaml:"recencyBase"`
	RecencyTauHours float64 `yaml:"recencyTauHours"`
	LikeWeight      float64 `yaml:"likeWeight"`
	RetweetWeight   float64 `yaml:"retweetWeight"`
	ReplyWeight     float64 `yaml:"replyWeight"`
	QuoteWeight     float64 `yaml:"quoteWeight"`
	MediaBonus      float64 `yaml:"mediaBonus"`
	VideoBonus      float64 `yaml:"videoBonus"`
	VelocityWeight  float64 `yaml:"velocityWeight"`
	PositionWeight  float64 `yaml:"positionWeight"`
	RandomAmplitude float64 `yaml:"randomAmplitude"`

	AllSeenNoveltyGain float64 `yaml:"allSeenNoveltyGain"`
	SeenPenalty        float64 `yaml:"seenPenalty"`
	SeenRecoveryHours  float64 `yaml:"seenRecoveryHours"`

	VerifiedBoost        float64   `yaml:"verifiedBoost"`
	GoldBoost            float64   `yaml:"goldBoost"`
	FollowerLogWeight    float64   `yaml:"followerLogWeight"`
	CommunityNotePenalty float64   `yaml:"communityNotePenalty"`
	BlockedWeight        float64   `yaml:"blockedWeight"`
	MutedWeight          float64   `yaml:"mutedWeight"`
	SpamScoreWeight      float64   `yaml:"spamScoreWeight"`
	AgeTiers             []AgeTier `yaml:"ageTiers"`

	SuspiciousURLFactor float64 `yaml:"suspiciousUrlFactor"`
	URLFree             int     `yaml:"urlFree"`
	URLFactor           float64 `yaml:"urlFactor"`
	HashtagFree         int     `yaml:"hashtagFree"`
	HashtagFactor       float64 `yaml:"hashtagFactor"`
	MentionFree         int     `yaml:"mentionFree"`
	MentionFactor       float64 `yaml:"mentionFactor"`
	PatternFloor        float64 `yaml:"patternFloor"`
	EmojiFree           float64 `yaml:"emojiFree"`
	KeywordWeight       float64 `yaml:"keywordWeight"`
	RatioFree           float64 `yaml:"ratioFree"`
	TimingWeight        float64 `yaml:"timingWeight"`
	ClusterFree         int     `yaml:"clusterFree"`
	ClusterWeight       float64 `yaml:"clusterWeight"`
	AuthorRepeatWeight  float64 `yaml:"authorRepeatWeight"`
	ContentRepeatWeight float64 `yaml:"contentRepeatWeight"`
}

// AgeTier multiplies the score of authors younger than MaxDays (0 = no upper bound).
type AgeTier struct {
	MaxDays float64 `yaml:"maxDays"`
	Factor  float64 `yaml:"factor"`
}

// SelectorConfig tunes batch-level selection.
type SelectorConfig struct {
	DefaultLimit      int     `yaml:"defaultLimit"`
	MaxLimit          int     `yaml:"maxLimit"`
	PoolMultiplier    int     `yaml:"poolMultiplier"`
	MinPool           int     `yaml:"minPool"`
	NoveltyUnseen     float64 `yaml:"noveltyUnseen"`
	NoveltyStale      float64 `yaml:"noveltyStale"`
	StaleAfterHours   float64 `yaml:"staleAfterHours"`
	DefaultSuperBoost float64 `yaml:"defaultSuperBoost"`
	RatioCutReplies   int     `yaml:"ratioCutReplies"`
	RatioCutFactor    float64 `yaml:"ratioCutFactor"`
	FollowerLogBoost  float64 `yaml:"followerLogBoost"`
	Jitter            float64 `yaml:"jitter"`
	StrictSlots       int     `yaml:"strictSlots"`
	EarlyContentPen   float64 `yaml:"earlyContentPenalty"`
	LateContentPen    float64 `yaml:"lateContentPenalty"`
	AuthorSoftCap     int     `yaml:"authorSoftCap"`
	AuthorSoftPen     float64 `yaml:"authorSoftPenalty"`
	AuthorHardCap     int     `yaml:"authorHardCap"`
	AuthorHardPen     float64 `yaml:"authorHardPenalty"`
	NeverSeenFactor   float64 `yaml:"neverSeenFactor"`
	SeenFloor         float64 `yaml:"seenFloor"`
	SeenRecovery      float64 `yaml:"seenRecovery"`
	SeenMax           float64 `yaml:"seenMax"`
	ReshuffleSlots    int     `yaml:"reshuffleSlots"`
	ReshuffleSpan     int     `yaml:"reshuffleSpan"`
}

// SignalsConfig holds the shared content lists.
type SignalsConfig struct {
	SuspiciousDomains []string `yaml:"suspiciousDomains"`
	SpamKeywords      []string `yaml:"spamKeywords"`
	KeywordHit        float64  `yaml:"keywordHit"`
}

// Tier maps a value at or above Min to Score. Tier lists are ordered by descending Min.
type Tier struct {
	Min   float64 `yaml:"min"`
	Score float64 `yaml:"score"`
}

// SpamConfig holds every weight and threshold of the spam analyzer.
type SpamConfig struct {
	MinPosts            int                `yaml:"minPosts"`
	Steepness           float64            `yaml:"steepness"`
	Midpoint            float64            `yaml:"midpoint"`
	Weights             map[string]float64 `yaml:"weights"`
	PostWindow          int                `yaml:"postWindow"`
	OriginalWindow      int                `yaml:"originalWindow"`
	ReplyWindow         int                `yaml:"replyWindow"`
	ImpactHalfLifeHours float64            `yaml:"impactHalfLifeHours"`

	Duplicate     DuplicateConfig     `yaml:"duplicate"`
	NearDuplicate NearDuplicateConfig `yaml:"nearDuplicate"`
	Frequency     FrequencyConfig     `yaml:"frequency"`
	Timing        TimingConfig        `yaml:"timing"`
	URL           URLConfig           `yaml:"url"`
	Hashtag       TagConfig           `yaml:"hashtag"`
	Mention       MentionConfig       `yaml:"mention"`
	Quality       QualityConfig       `yaml:"quality"`
	Reply         ReplyConfig         `yaml:"reply"`
	Engagement    EngagementConfig    `yaml:"engagement"`
	Account       AccountConfig       `yaml:"account"`
	Bot           BotConfig           `yaml:"bot"`
}

type DuplicateConfig struct {
	Window         int     `yaml:"window"`
	Tiers          []Tier  `yaml:"tiers"`
	RepeatOverride int     `yaml:"repeatOverride"`
	OverrideScore  float64 `yaml:"overrideScore"`
}

type NearDuplicateConfig struct {
	Window     int     `yaml:"window"`
	NGram      int     `yaml:"ngram"`
	Similarity float64 `yaml:"similarity"`
	MinPosts   int     `yaml:"minPosts"`
	Tiers      []Tier  `yaml:"tiers"`
}

type FrequencyConfig struct {
	Hour               []Tier  `yaml:"hour"`
	SixHours           []Tier  `yaml:"sixHours"`
	Day                []Tier  `yaml:"day"`
	DecayHalfLifeHours float64 `yaml:"decayHalfLifeHours"`
	DecayCap           float64 `yaml:"decayCap"`
	DecayScale         float64 `yaml:"decayScale"`
}

type TimingConfig struct {
	Window       int          `yaml:"window"`
	MinIntervals int          `yaml:"minIntervals"`
	Rules        []TimingRule `yaml:"rules"`
}

// TimingRule fires when the interval CoV is below MaxCoV and the mean interval below
// MaxMean. A zero MaxMean leaves the mean unbounded.
type TimingRule struct {
	MaxCoV  float64       `yaml:"maxCov"`
	MaxMean time.Duration `yaml:"maxMean"`
	Score   float64       `yaml:"score"`
}

type URLConfig struct {
	Window         int     `yaml:"window"`
	AvgTiers       []Tier  `yaml:"avgTiers"`
	RatioTiers     []Tier  `yaml:"ratioTiers"`
	RatioMinPosts  int     `yaml:"ratioMinPosts"`
	SuspiciousStep float64 `yaml:"suspiciousStep"`
	SuspiciousCap  float64 `yaml:"suspiciousCap"`
}

type TagConfig struct {
	Window            int     `yaml:"window"`
	AvgTiers          []Tier  `yaml:"avgTiers"`
	MaxPerPost        int     `yaml:"maxPerPost"`
	MaxScore          float64 `yaml:"maxScore"`
	LowDiversityMin   int     `yaml:"lowDiversityMin"`
	LowDiversityRatio float64 `yaml:"lowDiversityRatio"`
	LowDiversityPosts int     `yaml:"lowDiversityPosts"`
	LowDiversityBonus float64 `yaml:"lowDiversityBonus"`
}

type MentionConfig struct {
	TagConfig       `yaml:",inline"`
	RepetitiveMin   int     `yaml:"repetitiveMin"`
	RepetitiveRatio float64 `yaml:"repetitiveRatio"`
	RepetitiveScore float64 `yaml:"repetitiveScore"`
}

type QualityConfig struct {
	Window          int     `yaml:"window"`
	RepeatRun       int     `yaml:"repeatRun"`
	RepeatRatio     float64 `yaml:"repeatRatio"`
	CapsRatio       float64 `yaml:"capsRatio"`
	CapsMinLetters  int     `yaml:"capsMinLetters"`
	EmojiDensity    float64 `yaml:"emojiDensity"`
	KeywordScore    float64 `yaml:"keywordScore"`
	LowRatioTiers   []Tier  `yaml:"lowRatioTiers"`
	ShortWords      float64 `yaml:"shortWords"`
	ShortMinPosts   int     `yaml:"shortMinPosts"`
	ShortBonus      float64 `yaml:"shortBonus"`
	KeywordAvgScale float64 `yaml:"keywordAvgScale"`
}

type ReplyConfig struct {
	MinReplies         int     `yaml:"minReplies"`
	DuplicateTiers     []Tier  `yaml:"duplicateTiers"`
	SprayMinReplies    int     `yaml:"sprayMinReplies"`
	SprayDiversity     float64 `yaml:"sprayDiversity"`
	SprayDuplicate     float64 `yaml:"sprayDuplicate"`
	SprayBonus         float64 `yaml:"sprayBonus"`
	FixationMinReplies int     `yaml:"fixationMinReplies"`
	FixationDiversity  float64 `yaml:"fixationDiversity"`
	FixationScore      float64 `yaml:"fixationScore"`
}

// EngagementGate applies Tiers to the zero-engagement ratio once a window holds MinPosts.
type EngagementGate struct {
	Window   time.Duration `yaml:"window"` // 0 means all history
	MinPosts int           `yaml:"minPosts"`
	Tiers    []Tier        `yaml:"tiers"`
}

type EngagementConfig struct {
	Gates []EngagementGate `yaml:"gates"`
}

// AgeVolumeRule fires for accounts younger than MaxAgeDays with more than MinPosts posts.
type AgeVolumeRule struct {
	MaxAgeDays float64 `yaml:"maxAgeDays"`
	MinPosts   int     `yaml:"minPosts"`
	Score      float64 `yaml:"score"`
}

type AccountConfig struct {
	AgeVolume          []AgeVolumeRule `yaml:"ageVolume"`
	PostsPerDay        float64         `yaml:"postsPerDay"`
	PostsPerDayScore   float64         `yaml:"postsPerDayScore"`
	FollowingMin       int             `yaml:"followingMin"`
	FollowingRatio     float64         `yaml:"followingRatio"`
	FollowingScore     float64         `yaml:"followingScore"`
	LonelyFollowing    int             `yaml:"lonelyFollowing"`
	LonelyFollowers    int             `yaml:"lonelyFollowers"`
	LonelyScore        float64         `yaml:"lonelyScore"`
	SilentFollowers    int             `yaml:"silentFollowers"`
	SilentPosts        int             `yaml:"silentPosts"`
	SilentScore        float64         `yaml:"silentScore"`
	FollowerNullify    int             `yaml:"followerNullify"`
}

type BotConfig struct {
	High  map[string]float64 `yaml:"high"`
	Tiers []Tier             `yaml:"tiers"`
}

// ModerationConfig is the automated moderation policy.
type ModerationConfig struct {
	Enabled            bool    `yaml:"enabled"`
	ShadowbanThreshold float64 `yaml:"shadowbanThreshold"`
	Reason             string  `yaml:"reason"`
	ModeratorID        string  `yaml:"moderatorId"`
	// Caps on automated actions; 0 disables a cap.
	MaxPerHour int `yaml:"maxPerHour"`
	MaxPerDay  int `yaml:"maxPerDay"`
}

type SweepConfig struct {
	Interval time.Duration `yaml:"interval"`
	Lookback time.Duration `yaml:"lookback"`
	RPS      float64       `yaml:"rps"`
	Burst    int           `yaml:"burst"`
}

type StorageConfig struct {
	DBPath string `yaml:"dbPath"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// ResolveEnv fills in config fields from environment variables if set.
func (c *Config) ResolveEnv() {
	if v := os.Getenv("FEEDRANK_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("FEEDRANK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FEEDRANK_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// Load reads YAML config from path on top of Default, so omitted keys keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
