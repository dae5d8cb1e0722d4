package jobs

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"feedrank/internal/config"
	"feedrank/internal/logging"
	"feedrank/internal/metrics"
	"feedrank/internal/moderation"
	"feedrank/internal/spam"
)

// UserSource lists users with recent activity.
type UserSource interface {
	ActiveUsersSince(ctx context.Context, since time.Time) ([]string, error)
}

// Enforcer applies the outcome of a spam analysis.
type Enforcer interface {
	Enforce(ctx context.Context, res spam.Result) (moderation.Outcome, error)
}

// Summary counts what one sweep did.
type Summary struct {
	Users        int            `json:"users"`
	Analyzed     int            `json:"analyzed"`
	Errors       int            `json:"errors"`
	Actions      map[string]int `json:"actions"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	LookbackFrom time.Time      `json:"lookback_from"`
}

// RunSweepOnce analyzes every user active within the lookback window and
// enforces the result. Per-user failures are logged and counted; only a
// failure to list users or a cancelled context aborts the sweep.
func RunSweepOnce(ctx context.Context, users UserSource, an *spam.Analyzer, enf Enforcer, cfg config.SweepConfig) (Summary, error) {
	start := time.Now()
	metrics.SweepRuns.Inc()
	defer metrics.ObserveSweepDuration(start)

	sum := Summary{StartedAt: start.UTC(), LookbackFrom: start.UTC().Add(-cfg.Lookback), Actions: map[string]int{}}
	ids, err := users.ActiveUsersSince(ctx, sum.LookbackFrom)
	if err != nil {
		metrics.SweepErrors.Inc()
		return sum, err
	}
	sum.Users = len(ids)
	lim := limiter(cfg)
	for _, id := range ids {
		if err := lim.Wait(ctx); err != nil {
			sum.FinishedAt = time.Now().UTC()
			logging.Warn("sweep_interrupted", map[string]any{"users": sum.Users, "analyzed": sum.Analyzed, "error": err.Error()})
			return sum, err
		}
		res, err := an.Analyze(ctx, id)
		if err != nil {
			sum.Errors++
			metrics.SweepErrors.Inc()
			logging.Error("sweep_analyze_error", map[string]any{"user": id, "error": err.Error()})
			continue
		}
		sum.Analyzed++
		out, err := enf.Enforce(ctx, res)
		if err != nil {
			sum.Errors++
			metrics.SweepErrors.Inc()
			logging.Error("sweep_enforce_error", map[string]any{"user": id, "error": err.Error()})
			continue
		}
		sum.Actions[out.Action]++
	}
	sum.FinishedAt = time.Now().UTC()
	logging.Info("sweep_once", map[string]any{"users": sum.Users, "analyzed": sum.Analyzed, "errors": sum.Errors, "since": sum.LookbackFrom})
	return sum, nil
}

// RunSweepLoop runs RunSweepOnce on a ticker until ctx is cancelled.
func RunSweepLoop(ctx context.Context, users UserSource, an *spam.Analyzer, enf Enforcer, cfg config.SweepConfig) error {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	// run immediately
	if _, err := RunSweepOnce(ctx, users, an, enf, cfg); err != nil && ctx.Err() == nil {
		logging.Error("sweep_once_error", map[string]any{"error": err.Error()})
	}
	for {
		select {
		case <-ctx.Done():
			logging.Info("sweep_loop_stop", nil)
			return ctx.Err()
		case <-t.C:
			if _, err := RunSweepOnce(ctx, users, an, enf, cfg); err != nil && ctx.Err() == nil {
				logging.Error("sweep_once_error", map[string]any{"error": err.Error()})
			}
		}
	}
}

func limiter(cfg config.SweepConfig) *rate.Limiter {
	if cfg.RPS <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RPS), burst)
}
