package model

import (
	"math"
	"strings"
	"time"
)

var videoExts = []string{".mp4", ".webm", ".mov", ".avi"}

// HasMedia reports whether the post or its quoted post carries attachments.
func (p Post) HasMedia() bool {
	return len(p.Attachments) > 0 || p.QuotedHasMedia
}

// HasVideo reports whether any attachment looks like a video by type, MIME or extension.
func (p Post) HasVideo() bool {
	for _, a := range p.Attachments {
		if a.Type == "video" || strings.HasPrefix(a.MimeType, "video/") {
			return true
		}
		u := strings.ToLower(a.URL)
		for _, ext := range videoExts {
			if strings.HasSuffix(u, ext) {
				return true
			}
		}
	}
	return false
}

// TotalEngagement sums likes, retweets and replies, ignoring negative counters.
func (p Post) TotalEngagement() int {
	return nonNeg(p.LikeCount) + nonNeg(p.RetweetCount) + nonNeg(p.ReplyCount)
}

// RetweetLikeRatio is high when retweets outpace likes, a manipulation pattern.
func RetweetLikeRatio(retweets, likes int) float64 {
	retweets, likes = nonNeg(retweets), nonNeg(likes)
	if retweets == 0 && likes == 0 {
		return 0
	}
	if likes == 0 {
		return math.Min(1, float64(retweets)*0.1)
	}
	return math.Min(1, float64(retweets)/float64(likes+1))
}

// EngagementVelocity is engagement per hour of age, capped at 10.
func EngagementVelocity(p Post, now time.Time) float64 {
	age := now.Sub(p.CreatedAt)
	if age <= 0 {
		return 0
	}
	hours := math.Max(age.Hours(), 0.1)
	return math.Min(10, float64(p.TotalEngagement())/hours)
}

// AccountAgeDays returns the author's account age; 0 when unknown.
func (a Author) AccountAgeDays(now time.Time) float64 {
	if a.CreatedAt.IsZero() {
		return 0
	}
	return math.Max(0, now.Sub(a.CreatedAt).Hours()/24)
}

func nonNeg(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
