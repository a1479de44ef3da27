package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsExposure(t *testing.T) {
	DispatchCycles.Inc()
	PostsPublished.WithLabelValues("instagram").Inc()
	PostsFailed.WithLabelValues("linkedin", "PublishRejected").Inc()
	CommentsAttempted.WithLabelValues("instagram").Inc()
	CommentsFailed.WithLabelValues("instagram").Inc()
	ContainerPolls.Inc()
	ObserveDispatchDuration(time.Now().Add(-250 * time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"genposting_dispatch_cycles_total",
		"genposting_dispatch_duration_seconds",
		"genposting_posts_published_total",
		"genposting_posts_failed_total",
		"genposting_comments_attempted_total",
		"genposting_comments_failed_total",
		"genposting_instagram_container_polls_total",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}

func TestFailedCounterLabels(t *testing.T) {
	before := testutil.ToFloat64(PostsFailed.WithLabelValues("instagram", "MissingMedia"))
	PostsFailed.WithLabelValues("instagram", "MissingMedia").Inc()
	after := testutil.ToFloat64(PostsFailed.WithLabelValues("instagram", "MissingMedia"))
	if after-before != 1 {
		t.Fatalf("delta = %v, want 1", after-before)
	}
}
