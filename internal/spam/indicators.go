package spam

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"feedrank/internal/config"
	"feedrank/internal/model"
	"feedrank/internal/signals"
	"feedrank/internal/util"
)

// tierScore returns the score of the first tier whose Min v reaches.
func tierScore(v float64, tiers []config.Tier) float64 {
	for _, t := range tiers {
		if v >= t.Min {
			return t.Score
		}
	}
	return 0
}

func (e *evaluation) duplicate() Indicator {
	c := e.cfg.Duplicate
	posts := head(e.h.Originals, c.Window)
	if len(posts) == 0 {
		return e.indicator(config.IndicatorDuplicate, "Duplicate content", 0, "no original posts", nil)
	}
	keys := make([]string, len(posts))
	counts := make(map[string]int)
	for i, p := range posts {
		keys[i] = util.NormalizeForSpam(p.Content)
		if keys[i] != "" {
			counts[keys[i]]++
		}
	}
	dups, most := 0, 0
	for _, n := range counts {
		dups += n - 1
		most = max(most, n)
	}
	ratio := float64(dups) / float64(len(posts))
	score := tierScore(ratio, c.Tiers)
	if c.RepeatOverride > 0 && most > c.RepeatOverride {
		score = math.Max(score, c.OverrideScore)
	}
	i := -1
	impacting := e.collect(posts, func(model.Post) string {
		i++
		if n := counts[keys[i]]; n > 1 && keys[i] != "" {
			return fmt.Sprintf("text posted %d times", n)
		}
		return ""
	})
	details := fmt.Sprintf("%d of %d recent posts repeat earlier text (%.0f%%), most repeated %d times", dups, len(posts), ratio*100, most)
	return e.indicator(config.IndicatorDuplicate, "Duplicate content", score, details, impacting)
}

func (e *evaluation) nearDuplicate() Indicator {
	c := e.cfg.NearDuplicate
	var posts []model.Post
	var grams []map[string]struct{}
	for _, p := range head(e.h.Posts, c.Window) {
		norm := util.NormalizeForSpam(p.Content)
		if norm == "" {
			continue
		}
		posts = append(posts, p)
		grams = append(grams, util.CharNGrams(norm, c.NGram))
	}
	if len(posts) < c.MinPosts {
		return e.indicator(config.IndicatorNearDuplicate, "Near-duplicate content", 0,
			fmt.Sprintf("only %d comparable posts", len(posts)), nil)
	}
	similar := make([]int, len(posts))
	pairs, hits := 0, 0
	for i := range posts {
		for j := i + 1; j < len(posts); j++ {
			pairs++
			if util.Jaccard(grams[i], grams[j]) >= c.Similarity {
				hits++
				similar[i]++
				similar[j]++
			}
		}
	}
	ratio := float64(hits) / float64(pairs)
	i := -1
	impacting := e.collect(posts, func(model.Post) string {
		i++
		if similar[i] > 0 {
			return fmt.Sprintf("similar to %d other posts", similar[i])
		}
		return ""
	})
	details := fmt.Sprintf("%d of %d post pairs are at least %.0f%% similar", hits, pairs, c.Similarity*100)
	return e.indicator(config.IndicatorNearDuplicate, "Near-duplicate content", tierScore(ratio, c.Tiers), details, impacting)
}

func (e *evaluation) frequency() Indicator {
	c := e.cfg.Frequency
	half := c.DecayHalfLifeHours
	if half <= 0 {
		half = 6
	}
	var hour, six, day int
	var decayed float64
	for _, p := range e.h.Posts {
		age := max(0, e.now.Sub(p.CreatedAt))
		if age >= 24*time.Hour {
			continue
		}
		day++
		if age < 6*time.Hour {
			six++
		}
		if age < time.Hour {
			hour++
		}
		decayed += math.Exp(-math.Ln2 * age.Hours() / half)
	}
	score := max(
		tierScore(float64(hour), c.Hour),
		tierScore(float64(six), c.SixHours),
		tierScore(float64(day), c.Day),
	)
	if c.DecayCap > 0 {
		score = math.Max(score, math.Min(1, decayed/c.DecayCap)*c.DecayScale)
	}
	var impacting []ImpactingPost
	if score > 0 {
		impacting = e.collect(e.h.Posts, func(p model.Post) string {
			if e.now.Sub(p.CreatedAt) < time.Hour {
				return "posted within the last hour"
			}
			return ""
		})
	}
	details := fmt.Sprintf("%d posts in the last hour, %d in 6h, %d in 24h (decayed volume %.1f)", hour, six, day, decayed)
	return e.indicator(config.IndicatorFrequency, "Posting frequency", score, details, impacting)
}

func (e *evaluation) timing() Indicator {
	c := e.cfg.Timing
	posts := slices.Clone(head(e.dated, c.Window))
	slices.SortStableFunc(posts, func(a, b model.Post) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if len(posts)-1 < c.MinIntervals {
		return e.indicator(config.IndicatorTiming, "Timing regularity", 0,
			fmt.Sprintf("only %d intervals", max(0, len(posts)-1)), nil)
	}
	intervals := make([]float64, len(posts)-1)
	var mean float64
	for i := 1; i < len(posts); i++ {
		intervals[i-1] = posts[i-1].CreatedAt.Sub(posts[i].CreatedAt).Seconds()
		mean += intervals[i-1]
	}
	mean /= float64(len(intervals))
	if mean == 0 {
		impacting := e.collect(posts, func(model.Post) string { return "posted at the same instant as its neighbours" })
		return e.indicator(config.IndicatorTiming, "Timing regularity", 1, "all posts share one timestamp", impacting)
	}
	var variance float64
	for _, v := range intervals {
		variance += (v - mean) * (v - mean)
	}
	cov := math.Sqrt(variance/float64(len(intervals))) / mean
	meanDur := time.Duration(mean * float64(time.Second))

	var score float64
	for _, r := range c.Rules {
		if cov < r.MaxCoV && (r.MaxMean <= 0 || meanDur < r.MaxMean) {
			score = r.Score
			break
		}
	}
	var impacting []ImpactingPost
	if score > 0 {
		reason := fmt.Sprintf("part of a regular %s posting rhythm", meanDur.Round(time.Second))
		impacting = e.collect(posts, func(model.Post) string { return reason })
	}
	details := fmt.Sprintf("mean interval %s, coefficient of variation %.2f over %d intervals", meanDur.Round(time.Second), cov, len(intervals))
	return e.indicator(config.IndicatorTiming, "Timing regularity", score, details, impacting)
}

func (e *evaluation) urls() Indicator {
	c := e.cfg.URL
	posts := head(e.h.Posts, c.Window)
	total, suspicious, withURL := 0, 0, 0
	perPost := make([][2]int, len(posts))
	for i, p := range posts {
		n, s := e.ex.URLMetrics(p.Content)
		perPost[i] = [2]int{n, s}
		total += n
		suspicious += s
		if n > 0 {
			withURL++
		}
	}
	avg := float64(total) / float64(len(posts))
	ratio := float64(withURL) / float64(len(posts))
	score := tierScore(avg, c.AvgTiers)
	if len(posts) >= c.RatioMinPosts {
		score = math.Max(score, tierScore(ratio, c.RatioTiers))
	}
	score += math.Min(c.SuspiciousCap, c.SuspiciousStep*float64(suspicious))

	i := -1
	impacting := e.collect(posts, func(model.Post) string {
		i++
		switch n, s := perPost[i][0], perPost[i][1]; {
		case s > 0:
			return fmt.Sprintf("%d link(s) through a URL shortener", s)
		case n >= 2:
			return fmt.Sprintf("%d links in one post", n)
		}
		return ""
	})
	details := fmt.Sprintf("%.1f links per post, %.0f%% of posts carry links, %d shortened links", avg, ratio*100, suspicious)
	return e.indicator(config.IndicatorURL, "URL spam", score, details, impacting)
}

// tagStats summarises hashtag or mention use over a window.
type tagStats struct {
	score      float64
	avg        float64
	most       int
	lowDiverse int
	total      int
	unique     int
	impacting  []ImpactingPost
}

func (e *evaluation) tags(c config.TagConfig, extract func(string) []string, noun string) tagStats {
	posts := head(e.h.Posts, c.Window)
	var st tagStats
	all := make(map[string]struct{})
	perPost := make([][]string, len(posts))
	for i, p := range posts {
		tags := extract(p.Content)
		perPost[i] = tags
		st.total += len(tags)
		st.most = max(st.most, len(tags))
		distinct := make(map[string]struct{}, len(tags))
		for _, t := range tags {
			distinct[t] = struct{}{}
			all[t] = struct{}{}
		}
		if len(tags) >= c.LowDiversityMin && float64(len(distinct))/float64(len(tags)) <= c.LowDiversityRatio {
			st.lowDiverse++
		}
	}
	st.unique = len(all)
	if len(posts) > 0 {
		st.avg = float64(st.total) / float64(len(posts))
	}
	st.score = tierScore(st.avg, c.AvgTiers)
	if c.MaxPerPost > 0 && st.most > c.MaxPerPost {
		st.score = math.Max(st.score, c.MaxScore)
	}
	if c.LowDiversityPosts > 0 && st.lowDiverse >= c.LowDiversityPosts {
		st.score += c.LowDiversityBonus
	}
	i := -1
	st.impacting = e.collect(posts, func(model.Post) string {
		i++
		if n := len(perPost[i]); n > c.MaxPerPost || (n >= c.LowDiversityMin && n > 0 && st.score > 0) {
			return fmt.Sprintf("%d %s in one post", n, noun)
		}
		return ""
	})
	return st
}

func (e *evaluation) hashtags() Indicator {
	st := e.tags(e.cfg.Hashtag, signals.Hashtags, "hashtags")
	details := fmt.Sprintf("%.1f hashtags per post, at most %d in one post, %d posts repeat the same tags", st.avg, st.most, st.lowDiverse)
	return e.indicator(config.IndicatorHashtag, "Hashtag spam", st.score, details, st.impacting)
}

func (e *evaluation) mentions() Indicator {
	c := e.cfg.Mention
	st := e.tags(c.TagConfig, signals.Mentions, "mentions")
	score := st.score
	if st.total >= c.RepetitiveMin && st.total > 0 && float64(st.unique)/float64(st.total) < c.RepetitiveRatio {
		score = math.Max(score, c.RepetitiveScore)
	}
	details := fmt.Sprintf("%.1f mentions per post, at most %d in one post, %d distinct of %d total", st.avg, st.most, st.unique, st.total)
	return e.indicator(config.IndicatorMention, "Mention spam", score, details, st.impacting)
}

func (e *evaluation) quality() Indicator {
	c := e.cfg.Quality
	posts := head(e.h.Posts, c.Window)
	low, words := 0, 0
	var keywordSum float64
	reasons := make([]string, len(posts))
	for i, p := range posts {
		words += len(util.Tokenize(util.StripURLs(p.Content)))
		kw := e.ex.KeywordScore(p.Content)
		keywordSum += kw
		caps, letters := signals.CapsRatio(p.Content)
		switch {
		case signals.RepeatedCharRatio(p.Content, c.RepeatRun) > c.RepeatRatio:
			reasons[i] = "long runs of repeated characters"
		case letters >= c.CapsMinLetters && caps > c.CapsRatio:
			reasons[i] = "mostly capital letters"
		case signals.EmojiDensity(p.Content) > c.EmojiDensity:
			reasons[i] = "emoji heavy"
		case kw >= c.KeywordScore:
			reasons[i] = "spam phrases: " + strings.Join(e.ex.KeywordHits(p.Content), ", ")
		default:
			continue
		}
		low++
	}
	n := float64(len(posts))
	ratio := float64(low) / n
	avgWords := float64(words) / n
	avgKeyword := keywordSum / n

	score := tierScore(ratio, c.LowRatioTiers)
	if avgWords < c.ShortWords && len(posts) >= c.ShortMinPosts {
		score += c.ShortBonus
	}
	score += avgKeyword * c.KeywordAvgScale

	i := -1
	impacting := e.collect(posts, func(model.Post) string { i++; return reasons[i] })
	details := fmt.Sprintf("%d of %d posts are low quality, %.1f words per post, keyword score %.2f", low, len(posts), avgWords, avgKeyword)
	return e.indicator(config.IndicatorQuality, "Content quality", score, details, impacting)
}

func (e *evaluation) replies() Indicator {
	c := e.cfg.Reply
	replies := e.h.Replies
	if len(replies) < c.MinReplies {
		return e.indicator(config.IndicatorReply, "Reply spam", 0, fmt.Sprintf("only %d replies", len(replies)), nil)
	}
	keys := make([]string, len(replies))
	counts := make(map[string]int)
	targets := make(map[string]struct{})
	for i, r := range replies {
		keys[i] = util.NormalizeForSpam(r.Content)
		if keys[i] != "" {
			counts[keys[i]]++
		}
		targets[r.ReplyTo] = struct{}{}
	}
	dups := 0
	for _, n := range counts {
		dups += n - 1
	}
	n := float64(len(replies))
	dupRatio := float64(dups) / n
	diversity := float64(len(targets)) / n

	score := tierScore(dupRatio, c.DuplicateTiers)
	if len(replies) >= c.SprayMinReplies && diversity > c.SprayDiversity && dupRatio >= c.SprayDuplicate {
		score += c.SprayBonus
	}
	if len(replies) >= c.FixationMinReplies && diversity < c.FixationDiversity {
		score = math.Max(score, c.FixationScore)
	}
	i := -1
	impacting := e.collect(replies, func(model.Post) string {
		i++
		if k := keys[i]; k != "" && counts[k] > 1 {
			return fmt.Sprintf("same reply sent %d times", counts[k])
		}
		return ""
	})
	details := fmt.Sprintf("%.0f%% duplicate replies across %d targets in %d replies", dupRatio*100, len(targets), len(replies))
	return e.indicator(config.IndicatorReply, "Reply spam", score, details, impacting)
}

func (e *evaluation) engagement() Indicator {
	var score float64
	var fired []model.Post
	var parts []string
	for _, g := range e.cfg.Engagement.Gates {
		var window []model.Post
		for _, p := range e.h.Posts {
			if g.Window <= 0 || e.now.Sub(p.CreatedAt) < g.Window {
				window = append(window, p)
			}
		}
		label := "all time"
		if g.Window > 0 {
			label = g.Window.String()
		}
		if len(window) < g.MinPosts {
			parts = append(parts, fmt.Sprintf("%s: %d posts (below %d)", label, len(window), g.MinPosts))
			continue
		}
		zero := 0
		for _, p := range window {
			if p.TotalEngagement() == 0 {
				zero++
			}
		}
		ratio := float64(zero) / float64(len(window))
		parts = append(parts, fmt.Sprintf("%s: %.0f%% of %d posts without engagement", label, ratio*100, len(window)))
		if s := tierScore(ratio, g.Tiers); s > score {
			score = s
			fired = window
		}
	}
	impacting := e.collect(fired, func(p model.Post) string {
		if p.TotalEngagement() == 0 {
			return "no likes, retweets or replies"
		}
		return ""
	})
	return e.indicator(config.IndicatorEngagement, "Engagement manipulation", score, strings.Join(parts, "; "), impacting)
}

func (e *evaluation) account() Indicator {
	c := e.cfg.Account
	pr := e.h.Profile
	posts := max(pr.PostCount, len(e.h.Posts))
	followers, following := max(0, pr.FollowerCount), max(0, pr.FollowingCount)

	var score float64
	var reasons []string
	raise := func(s float64, reason string) {
		if s > 0 {
			score = math.Max(score, s)
			reasons = append(reasons, reason)
		}
	}
	ageDays := -1.0
	if !pr.CreatedAt.IsZero() {
		ageDays = math.Max(0, e.now.Sub(pr.CreatedAt).Hours()/24)
		for _, r := range c.AgeVolume {
			if ageDays < r.MaxAgeDays && posts > r.MinPosts {
				raise(r.Score, fmt.Sprintf("%d posts from an account under %.0f days old", posts, r.MaxAgeDays))
				break
			}
		}
		if perDay := float64(posts) / math.Max(ageDays, 1); perDay > c.PostsPerDay {
			raise(c.PostsPerDayScore, fmt.Sprintf("%.0f posts per day", perDay))
		}
	}
	if following >= c.FollowingMin && float64(following) >= float64(followers)*c.FollowingRatio {
		raise(c.FollowingScore, fmt.Sprintf("follows %d accounts with %d followers", following, followers))
	}
	if following > c.LonelyFollowing && followers < c.LonelyFollowers {
		raise(c.LonelyScore, "follows many accounts but has almost no followers")
	}
	if followers < c.SilentFollowers && posts > c.SilentPosts {
		raise(c.SilentScore, "high post volume with almost no audience")
	}
	if c.FollowerNullify > 0 {
		score *= math.Max(0, 1-float64(followers)/float64(c.FollowerNullify))
	}
	details := fmt.Sprintf("%d posts, %d followers, %d following", posts, followers, following)
	if ageDays >= 0 {
		details += fmt.Sprintf(", account %.1f days old", ageDays)
	}
	if len(reasons) > 0 && score > 0 {
		details += ": " + strings.Join(reasons, "; ")
	}
	return e.indicator(config.IndicatorAccount, "Account behavior", score, details, nil)
}

// bot counts how many of the other indicators crossed their own high mark.
func (e *evaluation) bot(others []Indicator) Indicator {
	var high []string
	for _, in := range others {
		if limit, ok := e.cfg.Bot.High[in.Name]; ok && in.Score > limit {
			high = append(high, in.Name)
		}
	}
	slices.Sort(high)
	details := fmt.Sprintf("%d indicators above their high mark", len(high))
	if len(high) > 0 {
		details += ": " + strings.Join(high, ", ")
	}
	return e.indicator(config.IndicatorBot, "Composite bot signal", tierScore(float64(len(high)), e.cfg.Bot.Tiers), details, nil)
}
