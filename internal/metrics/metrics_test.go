package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsExposure(t *testing.T) {
	RankRequests.Inc()
	RankFallbacks.Inc()
	ObserveRankDuration(time.Now().Add(-2 * time.Millisecond))
	IncSpamAnalysis("scored")
	SpamScores.Observe(0.42)
	IncModeration("shadowban", "applied")
	SweepRuns.Inc()
	SweepErrors.Inc()
	ObserveSweepDuration(time.Now().Add(-1500 * time.Millisecond))
	IncCommandRun("rank")
	IncCommandError("rank")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"feedrank_rank_requests_total",
		"feedrank_rank_fallbacks_total",
		"feedrank_rank_duration_seconds",
		`feedrank_spam_analyses_total{outcome="scored"}`,
		"feedrank_spam_score",
		`feedrank_moderation_actions_total{action="shadowban",result="applied"}`,
		"feedrank_sweep_runs_total",
		"feedrank_sweep_errors_total",
		"feedrank_sweep_duration_seconds",
		`feedrank_command_runs_total{command="rank"}`,
		`feedrank_command_errors_total{command="rank"}`,
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}
