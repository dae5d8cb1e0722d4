// Package spam scores how spam-like a user's recent activity is.
//
// The Analyzer loads a bounded history through a HistorySource and hands it to
// Evaluate, which is a pure function of the history, the clock reading and the
// configuration. Each indicator yields a score in [0,1]; the weighted mean is
// squashed through a logistic curve and rounded to three decimals.
package spam

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"feedrank/internal/config"
	"feedrank/internal/metrics"
	"feedrank/internal/model"
	"feedrank/internal/signals"
	"feedrank/internal/util"
)

// maxImpacting caps the example posts attached to one indicator.
const maxImpacting = 10

// Windows bounds how much history a source returns, newest first.
type Windows struct {
	Posts     int
	Originals int
	Replies   int
}

// HistorySource loads a user's recent activity.
type HistorySource interface {
	History(ctx context.Context, userID string, w Windows) (model.History, error)
}

// ImpactingPost is an example post that drove an indicator up.
type ImpactingPost struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	// Weight decays with the post's age so recent evidence ranks first.
	Weight float64 `json:"weight"`
}

// Indicator is one line of the score breakdown.
type Indicator struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Score       float64         `json:"score"`
	Weight      float64         `json:"weight"`
	Details     string          `json:"details"`
	Impacting   []ImpactingPost `json:"impacting_posts,omitempty"`
}

// Result is the outcome of one analysis. NotEnoughData results carry a zero
// score that must not be read as a clean bill of health.
type Result struct {
	UserID        string      `json:"user_id"`
	Score         float64     `json:"score"`
	NotEnoughData bool        `json:"not_enough_data"`
	Indicators    []Indicator `json:"indicators"`
	PostCount     int         `json:"post_count"`
	AnalyzedAt    time.Time   `json:"analyzed_at"`
}

// Indicator returns the named indicator from the breakdown.
func (r Result) Indicator(name string) (Indicator, bool) {
	for _, in := range r.Indicators {
		if in.Name == name {
			return in, true
		}
	}
	return Indicator{}, false
}

type Analyzer struct {
	src     HistorySource
	signals *signals.Extractor
	cfg     config.SpamConfig
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*Analyzer)

func WithClock(now func() time.Time) Option { return func(a *Analyzer) { a.now = now } }
func WithLogger(l *slog.Logger) Option      { return func(a *Analyzer) { a.logger = l } }

func New(src HistorySource, ex *signals.Extractor, cfg config.SpamConfig, opts ...Option) *Analyzer {
	a := &Analyzer{src: src, signals: ex, cfg: cfg, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Windows returns the history bounds the analyzer reads.
func (a *Analyzer) Windows() Windows {
	return Windows{Posts: a.cfg.PostWindow, Originals: a.cfg.OriginalWindow, Replies: a.cfg.ReplyWindow}
}

// Analyze loads userID's history and scores it. Only history read failures are
// returned as errors.
func (a *Analyzer) Analyze(ctx context.Context, userID string) (Result, error) {
	h, err := a.src.History(ctx, userID, a.Windows())
	if err != nil {
		metrics.IncSpamAnalysis("error")
		return Result{UserID: userID}, fmt.Errorf("load history for %s: %w", userID, err)
	}
	res := a.Evaluate(h, a.now())
	res.UserID = userID
	if res.NotEnoughData {
		metrics.IncSpamAnalysis("not_enough_data")
	} else {
		metrics.IncSpamAnalysis("scored")
		metrics.SpamScores.Observe(res.Score)
	}
	a.logger.Debug("spam analysis", "user", userID, "score", res.Score, "posts", res.PostCount, "not_enough_data", res.NotEnoughData)
	return res, nil
}

// Evaluate scores a history as of now.
func (a *Analyzer) Evaluate(h model.History, now time.Time) Result {
	dated := datedOnly(head(h.Originals, a.cfg.OriginalWindow))
	h = a.bound(h, now)
	res := Result{UserID: h.Profile.UserID, PostCount: len(h.Posts), AnalyzedAt: now}
	if len(h.Posts) < a.cfg.MinPosts {
		res.NotEnoughData = true
		return res
	}

	e := &evaluation{cfg: a.cfg, ex: a.signals, h: h, dated: dated, now: now}
	res.Indicators = []Indicator{
		e.duplicate(),
		e.nearDuplicate(),
		e.frequency(),
		e.timing(),
		e.urls(),
		e.hashtags(),
		e.mentions(),
		e.quality(),
		e.replies(),
		e.engagement(),
		e.account(),
	}
	res.Indicators = append(res.Indicators, e.bot(res.Indicators))

	var sum, weights float64
	for _, in := range res.Indicators {
		sum += in.Score * in.Weight
		weights += in.Weight
	}
	var x float64
	if weights > 0 {
		x = sum / weights
	}
	res.Score = round3(1 / (1 + math.Exp(-a.cfg.Steepness*(x-a.cfg.Midpoint))))
	return res
}

// bound trims a history to the configured windows and replaces missing
// timestamps with now.
func (a *Analyzer) bound(h model.History, now time.Time) model.History {
	h.Posts = stamp(head(h.Posts, a.cfg.PostWindow), now)
	h.Originals = stamp(head(h.Originals, a.cfg.OriginalWindow), now)
	h.Replies = stamp(head(h.Replies, a.cfg.ReplyWindow), now)
	return h
}

func head(posts []model.Post, n int) []model.Post {
	if n > 0 && len(posts) > n {
		return posts[:n]
	}
	return posts
}

// datedOnly drops posts without a timestamp.
func datedOnly(posts []model.Post) []model.Post {
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if !p.CreatedAt.IsZero() {
			out = append(out, p)
		}
	}
	return out
}

func stamp(posts []model.Post, now time.Time) []model.Post {
	var out []model.Post
	for i, p := range posts {
		if !p.CreatedAt.IsZero() {
			continue
		}
		if out == nil {
			out = append([]model.Post(nil), posts...)
		}
		out[i].CreatedAt = now
	}
	if out == nil {
		return posts
	}
	return out
}

// evaluation carries the inputs shared by every indicator of one Evaluate call.
type evaluation struct {
	cfg config.SpamConfig
	ex  *signals.Extractor
	h   model.History
	// originals that carried their own timestamp; stamped ones say nothing
	// about rhythm
	dated []model.Post
	now   time.Time
}

func (e *evaluation) indicator(name, display string, score float64, details string, impacting []ImpactingPost) Indicator {
	if len(impacting) > maxImpacting {
		impacting = impacting[:maxImpacting]
	}
	return Indicator{
		Name:        name,
		DisplayName: display,
		Score:       clamp01(score),
		Weight:      e.cfg.Weights[name],
		Details:     details,
		Impacting:   impacting,
	}
}

func (e *evaluation) impact(p model.Post, reason string) ImpactingPost {
	half := e.cfg.ImpactHalfLifeHours
	if half <= 0 {
		half = 72
	}
	age := math.Max(0, e.now.Sub(p.CreatedAt).Hours())
	return ImpactingPost{
		ID:        p.ID,
		Content:   util.Truncate(p.Content, 100),
		Reason:    reason,
		CreatedAt: p.CreatedAt,
		Weight:    math.Exp(-math.Ln2 * age / half),
	}
}

// collect gathers impacting posts that satisfy reason, stopping at the cap.
func (e *evaluation) collect(posts []model.Post, reason func(model.Post) string) []ImpactingPost {
	var out []ImpactingPost
	for _, p := range posts {
		if len(out) == maxImpacting {
			break
		}
		if r := reason(p); r != "" {
			out = append(out, e.impact(p, r))
		}
	}
	return out
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
