package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DispatchCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "genposting_dispatch_cycles_total",
		Help: "Total dispatch cycles run",
	})
	DispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "genposting_dispatch_duration_seconds",
		Help:    "Dispatch cycle duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	PostsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genposting_posts_published_total",
		Help: "Scheduled posts published",
	}, []string{"platform"})
	PostsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genposting_posts_failed_total",
		Help: "Scheduled posts failed, by error kind",
	}, []string{"platform", "kind"})
	CommentsAttempted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genposting_comments_attempted_total",
		Help: "Follow-up comments attempted",
	}, []string{"platform"})
	CommentsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genposting_comments_failed_total",
		Help: "Follow-up comments that the platform refused",
	}, []string{"platform"})
	ContainerPolls = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "genposting_instagram_container_polls_total",
		Help: "Instagram container status checks",
	})
)

func init() {
	prometheus.MustRegister(DispatchCycles, DispatchDuration, PostsPublished, PostsFailed,
		CommentsAttempted, CommentsFailed, ContainerPolls)
}

// StartServer serves /metrics and /health on addr. An empty addr disables it.
func StartServer(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Info("Metrics server stopped", "error", err.Error())
		}
	}()
}

// ObserveDispatchDuration records how long a cycle took.
func ObserveDispatchDuration(start time.Time) {
	DispatchDuration.Observe(time.Since(start).Seconds())
}
