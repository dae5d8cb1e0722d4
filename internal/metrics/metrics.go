package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RankRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedrank_rank_requests_total",
		Help: "Total feed ranking calls",
	})
	RankFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedrank_rank_fallbacks_total",
		Help: "Ranking calls served in input order because the scorer is disabled",
	})
	RankDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedrank_rank_duration_seconds",
		Help:    "Feed ranking duration seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
	})
	SpamAnalyses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedrank_spam_analyses_total",
		Help: "Spam analyses by outcome",
	}, []string{"outcome"})
	SpamScores = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedrank_spam_score",
		Help:    "Distribution of computed spam scores",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})
	ModerationActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedrank_moderation_actions_total",
		Help: "Automated moderation actions by action and result",
	}, []string{"action", "result"})
	SweepRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedrank_sweep_runs_total",
		Help: "Total spam sweep runs",
	})
	SweepErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedrank_sweep_errors_total",
		Help: "Total per-user spam sweep errors",
	})
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedrank_sweep_duration_seconds",
		Help:    "Spam sweep duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedrank_command_runs_total",
		Help: "CLI command runs",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedrank_command_errors_total",
		Help: "CLI command errors",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(RankRequests, RankFallbacks, RankDuration, SpamAnalyses, SpamScores,
		ModerationActions, SweepRuns, SweepErrors, SweepDuration, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObserveRankDuration records a ranking call duration.
func ObserveRankDuration(start time.Time) { RankDuration.Observe(time.Since(start).Seconds()) }

// ObserveSweepDuration records a sweep run duration.
func ObserveSweepDuration(start time.Time) { SweepDuration.Observe(time.Since(start).Seconds()) }

// IncSpamAnalysis counts an analysis by outcome (scored, not_enough_data, error).
func IncSpamAnalysis(outcome string) { SpamAnalyses.WithLabelValues(outcome).Inc() }

// IncModeration counts a moderation action attempt.
func IncModeration(action, result string) { ModerationActions.WithLabelValues(action, result).Inc() }

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
