// Package moderation turns spam analysis results into persisted state: the
// latest spam score and, above the configured threshold, an automated
// shadowban. Automated actions are capped per hour and per day.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feedrank/internal/config"
	"feedrank/internal/metrics"
	"feedrank/internal/spam"
	"feedrank/internal/store/sqlitestore"
)

// Actions reported in Outcome.Action.
const (
	ActionSkipped             = "skipped"
	ActionScored              = "scored"
	ActionShadowbanned        = "shadowbanned"
	ActionAlreadyShadowbanned = "already_shadowbanned"
	ActionBudgetExhausted     = "budget_exhausted"
)

// Store is the persistence the moderator needs.
type Store interface {
	UpdateSpamScore(ctx context.Context, userID string, score float64) error
	ApplyShadowban(ctx context.Context, s sqlitestore.Shadowban) (sqlitestore.ShadowbanResult, error)
	LiftShadowban(ctx context.Context, userID, actorID, reason string, at time.Time) (bool, error)
	CountActionsWithin(ctx context.Context, start, end time.Time, action string) (int, error)
}

// Outcome describes what Enforce did for one result.
type Outcome struct {
	UserID         string  `json:"user_id"`
	Score          float64 `json:"score"`
	Action         string  `json:"action"`
	SuspensionID   string  `json:"suspension_id,omitempty"`
	PurgedMessages int64   `json:"purged_messages,omitempty"`
}

type Moderator struct {
	store  Store
	cfg    config.ModerationConfig
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Moderator)

func WithClock(now func() time.Time) Option { return func(m *Moderator) { m.now = now } }
func WithLogger(l *slog.Logger) Option      { return func(m *Moderator) { m.logger = l } }

func New(store Store, cfg config.ModerationConfig, opts ...Option) *Moderator {
	m := &Moderator{store: store, cfg: cfg, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Enforce persists res.Score and shadowbans the user when the score exceeds the
// threshold. Results without enough data are never written.
func (m *Moderator) Enforce(ctx context.Context, res spam.Result) (Outcome, error) {
	out := Outcome{UserID: res.UserID, Score: res.Score, Action: ActionSkipped}
	if res.NotEnoughData {
		metrics.IncModeration("score", "skipped")
		return out, nil
	}
	if err := m.store.UpdateSpamScore(ctx, res.UserID, res.Score); err != nil {
		metrics.IncModeration("score", "error")
		return out, fmt.Errorf("update spam score for %s: %w", res.UserID, err)
	}
	out.Action = ActionScored
	metrics.IncModeration("score", "applied")
	if !m.cfg.Enabled || res.Score <= m.cfg.ShadowbanThreshold {
		return out, nil
	}

	now := m.now().UTC()
	ok, err := m.allow(ctx, now)
	if err != nil {
		metrics.IncModeration(sqlitestore.ActionShadowban, "error")
		return out, fmt.Errorf("check moderation budget: %w", err)
	}
	if !ok {
		out.Action = ActionBudgetExhausted
		metrics.IncModeration(sqlitestore.ActionShadowban, "budget_exhausted")
		m.logger.Warn("moderation budget exhausted", "user", res.UserID, "score", res.Score)
		return out, nil
	}

	sb, err := m.store.ApplyShadowban(ctx, sqlitestore.Shadowban{
		UserID:      res.UserID,
		ModeratorID: m.cfg.ModeratorID,
		Reason:      m.cfg.Reason,
		Score:       res.Score,
		At:          now,
	})
	if err != nil {
		metrics.IncModeration(sqlitestore.ActionShadowban, "error")
		return out, fmt.Errorf("shadowban %s: %w", res.UserID, err)
	}
	if !sb.Applied {
		out.Action = ActionAlreadyShadowbanned
		metrics.IncModeration(sqlitestore.ActionShadowban, "noop")
		return out, nil
	}
	out.Action = ActionShadowbanned
	out.SuspensionID = sb.SuspensionID
	out.PurgedMessages = sb.PurgedMessages
	metrics.IncModeration(sqlitestore.ActionShadowban, "applied")
	m.logger.Info("user shadowbanned", "user", res.UserID, "score", res.Score, "suspension", sb.SuspensionID, "purged_messages", sb.PurgedMessages)
	return out, nil
}

// Lift reverses an automated shadowban. It reports false when the user had no
// active shadowban.
func (m *Moderator) Lift(ctx context.Context, userID, actorID, reason string) (bool, error) {
	lifted, err := m.store.LiftShadowban(ctx, userID, actorID, reason, m.now().UTC())
	if err != nil {
		metrics.IncModeration(sqlitestore.ActionLiftShadowban, "error")
		return false, fmt.Errorf("lift shadowban for %s: %w", userID, err)
	}
	if lifted {
		metrics.IncModeration(sqlitestore.ActionLiftShadowban, "applied")
		m.logger.Info("shadowban lifted", "user", userID, "actor", actorID, "reason", reason)
	} else {
		metrics.IncModeration(sqlitestore.ActionLiftShadowban, "noop")
	}
	return lifted, nil
}

// allow checks the hourly and daily caps on automated shadowbans.
func (m *Moderator) allow(ctx context.Context, now time.Time) (bool, error) {
	startHour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC)
	startDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if m.cfg.MaxPerHour > 0 {
		n, err := m.store.CountActionsWithin(ctx, startHour, startHour.Add(time.Hour), sqlitestore.ActionShadowban)
		if err != nil {
			return false, err
		}
		if n >= m.cfg.MaxPerHour {
			return false, nil
		}
	}
	if m.cfg.MaxPerDay > 0 {
		n, err := m.store.CountActionsWithin(ctx, startDay, startDay.Add(24*time.Hour), sqlitestore.ActionShadowban)
		if err != nil {
			return false, err
		}
		if n >= m.cfg.MaxPerDay {
			return false, nil
		}
	}
	return true, nil
}
