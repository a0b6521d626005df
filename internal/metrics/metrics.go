// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordBlogCreated()
	RecordReaction(kind, result string)
	RecordReactionConflict()
	RecordReactionLatency(duration time.Duration)
	RecordAuthAttempt(method, result string)
	RecordHTTPStatus(statusCode int)
	RecordTokensCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	blogsCreated      prometheus.Counter
	reactions         *prometheus.CounterVec
	reactionConflicts prometheus.Counter
	reactionLatency   prometheus.Histogram
	authAttempts      *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
	tokensCleaned     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		blogsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_blogs_created_total",
			Help: "作成された記事の合計数",
		}),
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_reactions_total",
			Help: "種別・結果別のリアクション操作数",
		}, []string{"kind", "result"}),
		reactionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_reaction_conflicts_total",
			Help: "リアクション更新時のバージョン競合（再試行）の合計数",
		}),
		reactionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blogman_reaction_latency_seconds",
			Help:    "リアクション操作（再試行含む）のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_auth_attempts_total",
			Help: "方式・結果別の認証試行数",
		}, []string{"method", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		tokensCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_refresh_tokens_cleaned_total",
			Help: "クリーンアップで削除された期限切れリフレッシュトークンの合計数",
		}),
	}

	reg.MustRegister(
		c.blogsCreated,
		c.reactions,
		c.reactionConflicts,
		c.reactionLatency,
		c.authAttempts,
		c.httpStatus,
		c.tokensCleaned,
	)

	return c
}

// RecordBlogCreated は記事作成を記録する。
func (c *Collector) RecordBlogCreated() {
	c.blogsCreated.Inc()
}

// RecordReaction はリアクション操作の結果を記録する。
// kind: like, dislike, block / result: added, removed, blocked, unblocked, forbidden, not_found, error
func (c *Collector) RecordReaction(kind, result string) {
	c.reactions.WithLabelValues(kind, result).Inc()
}

// RecordReactionConflict はCAS競合による再試行を記録する。
func (c *Collector) RecordReactionConflict() {
	c.reactionConflicts.Inc()
}

// RecordReactionLatency はリアクション操作のレイテンシを記録する。
func (c *Collector) RecordReactionLatency(duration time.Duration) {
	c.reactionLatency.Observe(duration.Seconds())
}

// RecordAuthAttempt は認証試行を記録する。
// method: register, email, mobile, refresh / result: success, failure
func (c *Collector) RecordAuthAttempt(method, result string) {
	c.authAttempts.WithLabelValues(method, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordTokensCleaned は削除したリフレッシュトークン数を記録する。
func (c *Collector) RecordTokensCleaned(count int64) {
	c.tokensCleaned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
