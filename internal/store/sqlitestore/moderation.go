package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Moderation log actions.
const (
	ActionShadowban     = "shadowban"
	ActionLiftShadowban = "lift_shadowban"
)

// Shadowban describes one automated shadowban.
type Shadowban struct {
	UserID      string
	ModeratorID string
	Reason      string
	Score       float64
	At          time.Time
}

// ShadowbanResult reports what ApplyShadowban wrote. Applied is false when the
// user was already shadowbanned.
type ShadowbanResult struct {
	Applied        bool
	SuspensionID   string
	ReportID       string
	PurgedMessages int64
}

// Suspension is a row of the suspensions table.
type Suspension struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Action      string     `json:"action"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	ModeratorID string     `json:"moderator_id"`
	CreatedAt   time.Time  `json:"created_at"`
	LiftedAt    *time.Time `json:"lifted_at,omitempty"`
}

// Report is a row of the reports table.
type Report struct {
	ID         string    `json:"id"`
	ReporterID string    `json:"reporter_id"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Reason     string    `json:"reason"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// UpdateSpamScore records the latest spam score for userID. It returns
// ErrNotFound when no such user exists.
func (d *DB) UpdateSpamScore(ctx context.Context, userID string, score float64) error {
	r, err := d.sql.ExecContext(ctx, `UPDATE users SET spam_score=? WHERE id=?`, score, userID)
	if err != nil {
		return err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// ApplyShadowban flags the user, opens an active suspension and a pending
// report, purges their outgoing direct messages and logs the action, all in one
// transaction. The flag flip is a compare-and-set, so concurrent calls for the
// same user apply at most once; the partial unique index on active shadowbans
// backs this up. Unknown users yield ErrNotFound.
func (d *DB) ApplyShadowban(ctx context.Context, s Shadowban) (res ShadowbanResult, err error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil || !res.Applied {
			_ = tx.Rollback()
		}
	}()

	r, err := tx.ExecContext(ctx, `UPDATE users SET shadowbanned=1, spam_score=? WHERE id=? AND shadowbanned=0`, s.Score, s.UserID)
	if err != nil {
		return res, fmt.Errorf("flag user: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return res, err
	}
	if n == 0 {
		// already flagged, unless the user is missing altogether
		var one int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=?`, s.UserID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return res, fmt.Errorf("user %s: %w", s.UserID, ErrNotFound)
		}
		return res, err
	}

	at := unixMilli(s.At)
	suspensionID, reportID := uuid.NewString(), uuid.NewString()
	if _, err = tx.ExecContext(ctx, `INSERT INTO suspensions(id, user_id, action, reason, status, moderator_id, created_at)
	VALUES(?,?,?,?,'active',?,?)`, suspensionID, s.UserID, ActionShadowban, s.Reason, s.ModeratorID, at); err != nil {
		return res, fmt.Errorf("insert suspension: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO reports(id, reporter_id, target_type, target_id, reason, status, created_at)
	VALUES(?,?,'user',?,?,'pending',?)`, reportID, s.ModeratorID, s.UserID, s.Reason, at); err != nil {
		return res, fmt.Errorf("insert report: %w", err)
	}
	r, err = tx.ExecContext(ctx, `DELETE FROM direct_messages WHERE sender_id=?`, s.UserID)
	if err != nil {
		return res, fmt.Errorf("purge messages: %w", err)
	}
	purged, err := r.RowsAffected()
	if err != nil {
		return res, err
	}
	details := map[string]any{"score": s.Score, "suspension_id": suspensionID, "purged_messages": purged, "reason": s.Reason}
	if err = d.log(ctx, tx, s.ModeratorID, s.UserID, ActionShadowban, details, at); err != nil {
		return res, err
	}
	if err = tx.Commit(); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	return ShadowbanResult{Applied: true, SuspensionID: suspensionID, ReportID: reportID, PurgedMessages: purged}, nil
}

// LiftShadowban lifts the user's active shadowban, clears the flag and resets
// the spam score. It reports false when there was nothing to lift.
func (d *DB) LiftShadowban(ctx context.Context, userID, actorID, reason string, at time.Time) (lifted bool, err error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil || !lifted {
			_ = tx.Rollback()
		}
	}()
	ms := unixMilli(at)
	r, err := tx.ExecContext(ctx, `UPDATE suspensions SET status='lifted', lifted_at=?
	WHERE user_id=? AND action=? AND status='active'`, ms, userID, ActionShadowban)
	if err != nil {
		return false, fmt.Errorf("lift suspension: %w", err)
	}
	if n, err := r.RowsAffected(); err != nil || n == 0 {
		return false, err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE users SET shadowbanned=0, spam_score=0 WHERE id=?`, userID); err != nil {
		return false, fmt.Errorf("clear user: %w", err)
	}
	if err = d.log(ctx, tx, actorID, userID, ActionLiftShadowban, map[string]any{"reason": reason}, ms); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (d *DB) log(ctx context.Context, tx *sql.Tx, moderatorID, userID, action string, details map[string]any, at int64) error {
	b, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO moderation_logs(id, moderator_id, target_type, target_id, action, details, created_at)
	VALUES(?,?,'user',?,?,?,?)`, uuid.NewString(), moderatorID, userID, action, string(b), at)
	if err != nil {
		return fmt.Errorf("insert moderation log: %w", err)
	}
	return nil
}

// CountActionsWithin counts moderation log entries of action in [start, end).
func (d *DB) CountActionsWithin(ctx context.Context, start, end time.Time, action string) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM moderation_logs WHERE action=? AND created_at>=? AND created_at<?`,
		action, unixMilli(start), unixMilli(end)).Scan(&n)
	return n, err
}

// Suspensions lists userID's suspensions, newest first. status filters when non-empty.
func (d *DB) Suspensions(ctx context.Context, userID, status string) ([]Suspension, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT id, user_id, action, reason, status, moderator_id, created_at, lifted_at
	FROM suspensions WHERE user_id=? AND (?='' OR status=?) ORDER BY created_at DESC, id`, userID, status, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Suspension
	for rows.Next() {
		var s Suspension
		var created int64
		var lifted sql.NullInt64
		if err := rows.Scan(&s.ID, &s.UserID, &s.Action, &s.Reason, &s.Status, &s.ModeratorID, &created, &lifted); err != nil {
			return nil, err
		}
		s.CreatedAt = fromMilli(created)
		if lifted.Valid {
			t := fromMilli(lifted.Int64)
			s.LiftedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Reports lists reports filed against userID, newest first.
func (d *DB) Reports(ctx context.Context, userID string) ([]Report, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT id, reporter_id, target_type, target_id, reason, status, created_at
	FROM reports WHERE target_type='user' AND target_id=? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Report
	for rows.Next() {
		var r Report
		var created int64
		if err := rows.Scan(&r.ID, &r.ReporterID, &r.TargetType, &r.TargetID, &r.Reason, &r.Status, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = fromMilli(created)
		out = append(out, r)
	}
	return out, rows.Err()
}
