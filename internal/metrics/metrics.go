// Package metrics はPrometheusメトリクスの定義と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はアプリケーションのメトリクスコレクター。
type Metrics struct {
	registry *prometheus.Registry

	runsTotal            *prometheus.CounterVec
	runDuration          prometheus.Histogram
	postsFoundTotal      prometheus.Counter
	commentsFoundTotal   prometheus.Counter
	subredditErrorsTotal prometheus.Counter
	httpRequestsTotal    *prometheus.CounterVec
}

// New はMetricsを生成し、全コレクターを専用レジストリに登録する。
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subwatch_monitor_runs_total",
			Help: "モニター実行の総数（終端状態別）",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "subwatch_monitor_run_duration_seconds",
			Help:    "モニター実行の所要時間",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		postsFoundTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subwatch_posts_found_total",
			Help: "キーワードにマッチして保存された投稿の総数",
		}),
		commentsFoundTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subwatch_comments_found_total",
			Help: "キーワードにマッチして保存されたコメントの総数",
		}),
		subredditErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subwatch_subreddit_errors_total",
			Help: "実行中に発生したsubreddit単位のエラーの総数",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subwatch_http_requests_total",
			Help: "HTTPリクエストの総数",
		}, []string{"method", "path", "status"}),
	}

	registry.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.postsFoundTotal,
		m.commentsFoundTotal,
		m.subredditErrorsTotal,
		m.httpRequestsTotal,
	)

	return m
}

// ObserveRun は実行の終端状態と所要時間を記録する。
func (m *Metrics) ObserveRun(status string, duration time.Duration) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// AddPostsFound は保存された投稿数を加算する。
func (m *Metrics) AddPostsFound(n int) {
	m.postsFoundTotal.Add(float64(n))
}

// AddCommentsFound は保存されたコメント数を加算する。
func (m *Metrics) AddCommentsFound(n int) {
	m.commentsFoundTotal.Add(float64(n))
}

// AddSubredditErrors はsubreddit単位のエラー数を加算する。
func (m *Metrics) AddSubredditErrors(n int) {
	m.subredditErrorsTotal.Add(float64(n))
}

// ObserveHTTPRequest はHTTPリクエストを記録する。
func (m *Metrics) ObserveHTTPRequest(method, path, status string) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// Handler は/metricsエンドポイント用のハンドラーを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
