package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"feedrank/internal/model"
	"feedrank/internal/spam"
)

const userColumns = `u.id, u.username, u.created_at, u.verified, u.gold, u.follower_count, u.following_count,
	u.post_count, u.blocked_by_count, u.muted_by_count, u.spam_score, u.timing_score, u.super_tweeter,
	u.super_tweeter_boost, u.shadowbanned`

const postColumns = `p.id, p.user_id, p.content, p.created_at, p.like_count, p.retweet_count, p.reply_count,
	p.quote_count, p.reply_to, p.attachments, p.quoted_has_media, p.community_note, p.super_tweet,
	p.super_tweet_boost, p.cluster_size`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (model.Author, error) {
	var u model.Author
	var created int64
	err := s.Scan(&u.ID, &u.Username, &created, &u.Verified, &u.Gold, &u.FollowerCount, &u.FollowingCount,
		&u.PostCount, &u.BlockedByCount, &u.MutedByCount, &u.SpamScore, &u.TimingScore, &u.SuperTweeter,
		&u.SuperTweeterBoost, &u.Shadowbanned)
	u.CreatedAt = fromMilli(created)
	return u, err
}

func scanPost(dest *model.Post, created *int64, attachments *sql.NullString) []any {
	return []any{&dest.ID, &dest.AuthorID, &dest.Content, created, &dest.LikeCount, &dest.RetweetCount,
		&dest.ReplyCount, &dest.QuoteCount, &dest.ReplyTo, attachments, &dest.QuotedHasMedia,
		&dest.HasCommunityNote, &dest.SuperTweet, &dest.SuperTweetBoost, &dest.ClusterSize}
}

func finishPost(p *model.Post, created int64, attachments sql.NullString) {
	p.CreatedAt = fromMilli(created)
	if attachments.Valid && attachments.String != "" {
		// A malformed blob only loses the media markers.
		_ = json.Unmarshal([]byte(attachments.String), &p.Attachments)
	}
}

// History loads userID's recent posts, originals and replies (newest first)
// together with the profile counters. It satisfies spam.HistorySource.
func (d *DB) History(ctx context.Context, userID string, w spam.Windows) (model.History, error) {
	u, err := d.User(ctx, userID)
	if err != nil {
		return model.History{}, err
	}
	h := model.History{Profile: model.Profile{
		UserID:         u.ID,
		FollowerCount:  u.FollowerCount,
		FollowingCount: u.FollowingCount,
		PostCount:      u.PostCount,
		CreatedAt:      u.CreatedAt,
		Shadowbanned:   u.Shadowbanned,
		SpamScore:      u.SpamScore,
	}}
	if h.Posts, err = d.userPosts(ctx, userID, "", w.Posts); err != nil {
		return h, fmt.Errorf("posts: %w", err)
	}
	if h.Originals, err = d.userPosts(ctx, userID, "AND p.reply_to=''", w.Originals); err != nil {
		return h, fmt.Errorf("originals: %w", err)
	}
	if h.Replies, err = d.userPosts(ctx, userID, "AND p.reply_to<>''", w.Replies); err != nil {
		return h, fmt.Errorf("replies: %w", err)
	}
	return h, nil
}

func (d *DB) userPosts(ctx context.Context, userID, filter string, limit int) ([]model.Post, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.sql.QueryContext(ctx, `SELECT `+postColumns+` FROM posts p WHERE p.user_id=? `+filter+`
	ORDER BY p.created_at DESC, p.id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Post
	for rows.Next() {
		var p model.Post
		var created int64
		var attachments sql.NullString
		if err := rows.Scan(scanPost(&p, &created, &attachments)...); err != nil {
			return nil, err
		}
		finishPost(&p, created, attachments)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Candidates returns posts created at or after since, newest first, with their
// authors joined. Posts by shadowbanned authors are left out.
func (d *DB) Candidates(ctx context.Context, since time.Time, limit int) ([]model.Post, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.sql.QueryContext(ctx, `SELECT `+postColumns+`, `+userColumns+`
	FROM posts p JOIN users u ON u.id = p.user_id
	WHERE p.created_at>=? AND u.shadowbanned=0
	ORDER BY p.created_at DESC, p.id DESC LIMIT ?`, unixMilli(since), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Post
	for rows.Next() {
		var p model.Post
		var created, userCreated int64
		var attachments sql.NullString
		dest := scanPost(&p, &created, &attachments)
		a := &p.Author
		dest = append(dest, &a.ID, &a.Username, &userCreated, &a.Verified, &a.Gold, &a.FollowerCount,
			&a.FollowingCount, &a.PostCount, &a.BlockedByCount, &a.MutedByCount, &a.SpamScore, &a.TimingScore,
			&a.SuperTweeter, &a.SuperTweeterBoost, &a.Shadowbanned)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		finishPost(&p, created, attachments)
		a.CreatedAt = fromMilli(userCreated)
		p.AuthorTimingScore = a.TimingScore
		out = append(out, p)
	}
	return out, rows.Err()
}

// ActiveUsersSince lists users who posted at or after since and are not
// shadowbanned yet.
func (d *DB) ActiveUsersSince(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT DISTINCT p.user_id FROM posts p JOIN users u ON u.id = p.user_id
	WHERE p.created_at>=? AND u.shadowbanned=0 ORDER BY p.user_id`, unixMilli(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
