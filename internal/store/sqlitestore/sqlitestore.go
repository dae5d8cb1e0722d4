// Package sqlitestore persists users, posts, direct messages and moderation
// records in SQLite. It is the history source for the spam analyzer and the
// write side of automated moderation.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"feedrank/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite database.
type DB struct{ sql *sql.DB }

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serialises writers and keeps per-connection pragmas and
	// in-memory databases alive for the lifetime of the handle.
	d.SetMaxOpenConns(1)
	pragmas := `PRAGMA foreign_keys=ON; PRAGMA busy_timeout=5000;`
	if path != ":memory:" {
		pragmas += ` PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`
	}
	if _, err := d.Exec(pragmas); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Wrap uses an existing handle as is, without touching the schema.
func Wrap(d *sql.DB) *DB { return &DB{sql: d} }

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS users (
	  id TEXT PRIMARY KEY,
	  username TEXT NOT NULL DEFAULT '',
	  created_at INTEGER NOT NULL DEFAULT 0,
	  verified INTEGER NOT NULL DEFAULT 0,
	  gold INTEGER NOT NULL DEFAULT 0,
	  follower_count INTEGER NOT NULL DEFAULT 0,
	  following_count INTEGER NOT NULL DEFAULT 0,
	  post_count INTEGER NOT NULL DEFAULT 0,
	  blocked_by_count INTEGER NOT NULL DEFAULT 0,
	  muted_by_count INTEGER NOT NULL DEFAULT 0,
	  spam_score REAL NOT NULL DEFAULT 0,
	  timing_score REAL NOT NULL DEFAULT 0,
	  super_tweeter INTEGER NOT NULL DEFAULT 0,
	  super_tweeter_boost REAL NOT NULL DEFAULT 0,
	  shadowbanned INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS posts (
	  id TEXT PRIMARY KEY,
	  user_id TEXT NOT NULL,
	  content TEXT NOT NULL DEFAULT '',
	  created_at INTEGER NOT NULL,
	  like_count INTEGER NOT NULL DEFAULT 0,
	  retweet_count INTEGER NOT NULL DEFAULT 0,
	  reply_count INTEGER NOT NULL DEFAULT 0,
	  quote_count INTEGER NOT NULL DEFAULT 0,
	  reply_to TEXT NOT NULL DEFAULT '',
	  attachments TEXT,
	  quoted_has_media INTEGER NOT NULL DEFAULT 0,
	  community_note INTEGER NOT NULL DEFAULT 0,
	  super_tweet INTEGER NOT NULL DEFAULT 0,
	  super_tweet_boost REAL NOT NULL DEFAULT 0,
	  cluster_size INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_posts_user_created ON posts(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at);
	CREATE TABLE IF NOT EXISTS direct_messages (
	  id TEXT PRIMARY KEY,
	  sender_id TEXT NOT NULL,
	  recipient_id TEXT NOT NULL,
	  content TEXT NOT NULL DEFAULT '',
	  created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_dm_sender ON direct_messages(sender_id);
	CREATE TABLE IF NOT EXISTS suspensions (
	  id TEXT PRIMARY KEY,
	  user_id TEXT NOT NULL,
	  action TEXT NOT NULL,
	  reason TEXT NOT NULL,
	  status TEXT NOT NULL,
	  moderator_id TEXT NOT NULL,
	  created_at INTEGER NOT NULL,
	  lifted_at INTEGER
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_suspensions_active_shadowban
	  ON suspensions(user_id) WHERE status='active' AND action='shadowban';
	CREATE TABLE IF NOT EXISTS reports (
	  id TEXT PRIMARY KEY,
	  reporter_id TEXT NOT NULL,
	  target_type TEXT NOT NULL,
	  target_id TEXT NOT NULL,
	  reason TEXT NOT NULL,
	  status TEXT NOT NULL,
	  created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_target ON reports(target_type, target_id);
	CREATE TABLE IF NOT EXISTS moderation_logs (
	  id TEXT PRIMARY KEY,
	  moderator_id TEXT NOT NULL,
	  target_type TEXT NOT NULL,
	  target_id TEXT NOT NULL,
	  action TEXT NOT NULL,
	  details TEXT,
	  created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_modlog_action_created ON moderation_logs(action, created_at);
	`)
	return err
}

// Message is a direct message between two users.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// PutUser inserts or replaces the account row. Moderation state
// (spam_score, shadowbanned) is only written on insert.
func (d *DB) PutUser(ctx context.Context, u model.Author) error {
	_, err := d.sql.ExecContext(ctx, `
	INSERT INTO users(id, username, created_at, verified, gold, follower_count, following_count, post_count,
	  blocked_by_count, muted_by_count, spam_score, timing_score, super_tweeter, super_tweeter_boost, shadowbanned)
	VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(id) DO UPDATE SET
	  username=excluded.username, created_at=excluded.created_at, verified=excluded.verified, gold=excluded.gold,
	  follower_count=excluded.follower_count, following_count=excluded.following_count, post_count=excluded.post_count,
	  blocked_by_count=excluded.blocked_by_count, muted_by_count=excluded.muted_by_count,
	  timing_score=excluded.timing_score, super_tweeter=excluded.super_tweeter,
	  super_tweeter_boost=excluded.super_tweeter_boost`,
		u.ID, u.Username, unixMilli(u.CreatedAt), u.Verified, u.Gold, u.FollowerCount, u.FollowingCount, u.PostCount,
		u.BlockedByCount, u.MutedByCount, u.SpamScore, u.TimingScore, u.SuperTweeter, u.SuperTweeterBoost, u.Shadowbanned)
	return err
}

// User loads one account.
func (d *DB) User(ctx context.Context, id string) (model.Author, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id=?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Author{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, err
}

// PutPost inserts or updates a post; counters and flags follow the latest write.
func (d *DB) PutPost(ctx context.Context, p model.Post) error {
	var attachments *string
	if len(p.Attachments) > 0 {
		b, err := json.Marshal(p.Attachments)
		if err != nil {
			return err
		}
		s := string(b)
		attachments = &s
	}
	_, err := d.sql.ExecContext(ctx, `
	INSERT INTO posts(id, user_id, content, created_at, like_count, retweet_count, reply_count, quote_count, reply_to,
	  attachments, quoted_has_media, community_note, super_tweet, super_tweet_boost, cluster_size)
	VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(id) DO UPDATE SET
	  content=excluded.content, like_count=excluded.like_count, retweet_count=excluded.retweet_count,
	  reply_count=excluded.reply_count, quote_count=excluded.quote_count, attachments=excluded.attachments,
	  quoted_has_media=excluded.quoted_has_media, community_note=excluded.community_note,
	  super_tweet=excluded.super_tweet, super_tweet_boost=excluded.super_tweet_boost, cluster_size=excluded.cluster_size`,
		p.ID, p.AuthorKey(), p.Content, unixMilli(p.CreatedAt), p.LikeCount, p.RetweetCount, p.ReplyCount, p.QuoteCount,
		p.ReplyTo, attachments, p.QuotedHasMedia, p.HasCommunityNote, p.SuperTweet, p.SuperTweetBoost, p.ClusterSize)
	return err
}

// PutMessage stores a direct message.
func (d *DB) PutMessage(ctx context.Context, m Message) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO direct_messages(id, sender_id, recipient_id, content, created_at) VALUES(?,?,?,?,?)
	ON CONFLICT(id) DO NOTHING`, m.ID, m.SenderID, m.RecipientID, m.Content, unixMilli(m.CreatedAt))
	return err
}

// CountMessagesFrom counts direct messages sent by userID.
func (d *DB) CountMessagesFrom(ctx context.Context, userID string) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM direct_messages WHERE sender_id=?`, userID).Scan(&n)
	return n, err
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
