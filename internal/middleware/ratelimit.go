package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/blogman/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（ユーザー単位、req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	ReactionRate    rate.Limit    // いいね・よくないね・ブロックのレート（ユーザー単位、req/sec）
	ReactionBurst   int           // リアクションのバーストサイズ
	AuthRate        rate.Limit    // 認証エンドポイントのレート（IP単位、req/sec）
	AuthBurst       int           // 認証エンドポイントのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// RateLimiterConfigPerMinute は1分あたりのリクエスト数からRateLimiterConfigを生成する。
// バーストサイズは1分間の上限と同じ値とする。
func RateLimiterConfigPerMinute(general, reaction, auth int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     perMinute(general),
		GeneralBurst:    general,
		ReactionRate:    perMinute(reaction),
		ReactionBurst:   reaction,
		AuthRate:        perMinute(auth),
		AuthBurst:       auth,
		CleanupInterval: 5 * time.Minute,
	}
}

func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

// keyedLimiter はユーザーIDやIPアドレスをキーにレートリミッターを管理する。
type keyedLimiter struct {
	name  string
	rate  rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

// limiterEntry はキーごとのレートリミッターとアクセス時刻を保持する。
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newKeyedLimiter(name string, r rate.Limit, burst int) *keyedLimiter {
	return &keyedLimiter{
		name:     name,
		rate:     r,
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
	}
}

// allow はキーのリミッターからトークンを1つ消費できるかを返す。
func (k *keyedLimiter) allow(key string, now time.Time) bool {
	k.mu.Lock()
	e, ok := k.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(k.rate, k.burst)}
		k.limiters[key] = e
	}
	e.lastAccess = now
	k.mu.Unlock()
	return e.limiter.AllowN(now, 1)
}

// sweep は最終アクセスからttlを超えたエントリを削除する。
func (k *keyedLimiter) sweep(now time.Time, ttl time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, e := range k.limiters {
		if now.Sub(e.lastAccess) > ttl {
			delete(k.limiters, key)
		}
	}
}

func (k *keyedLimiter) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

// RateLimiter はレート制限を管理する。
// ユーザー単位のAPI全般・リアクション用と、IP単位の認証用の3種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	general  *keyedLimiter
	reaction *keyedLimiter
	auth     *keyedLimiter

	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		general:  newKeyedLimiter("general", config.GeneralRate, config.GeneralBurst),
		reaction: newKeyedLimiter("reaction", config.ReactionRate, config.ReactionBurst),
		auth:     newKeyedLimiter("auth", config.AuthRate, config.AuthBurst),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼び出してもよい。
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// 認証ミドルウェアの後に配置する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.userMiddleware(rl.general)
}

// ReactionMiddleware はリアクション系エンドポイント専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) ReactionMiddleware() func(next http.Handler) http.Handler {
	return rl.userMiddleware(rl.reaction)
}

// AuthMiddleware はログイン・登録などの未認証エンドポイント向けに、
// クライアントIPごとのレート制限を行うミドルウェアを返す。
func (rl *RateLimiter) AuthMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.auth.allow(ip, rl.now()) {
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", ip),
					slog.String("limit_type", rl.auth.name),
				)
				writeRateLimitResponse(w, rl.auth.rate)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) userMiddleware(k *keyedLimiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			if !k.allow(userID, rl.now()) {
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", k.name),
				)
				writeRateLimitResponse(w, k.rate)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCounts は種類ごとの管理中エントリ数を返す。
func (rl *RateLimiter) LimiterCounts() map[string]int {
	return map[string]int{
		rl.general.name:  rl.general.count(),
		rl.reaction.name: rl.reaction.count(),
		rl.auth.name:     rl.auth.count(),
	}
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := rl.now()
	for _, k := range []*keyedLimiter{rl.general, rl.reaction, rl.auth} {
		k.sweep(now, ttl)
	}
}

// clientIP はRemoteAddrからホスト部分を取り出す。
// プロキシ配下ではchiのRealIPミドルウェアでRemoteAddrを書き換えておく。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = max(int(math.Ceil(1.0/float64(r))), 1)
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitExceededError())
}
