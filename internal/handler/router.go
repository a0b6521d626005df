package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/validate"
)

// healthCheckTimeout は /health でのDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	ViewerResolver    middleware.ViewerResolver
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Validator         *validate.Validator

	// 監視
	HealthChecker    HealthChecker
	MetricsCollector metrics.MetricsCollector
	MetricsGatherer  prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 記事
	BlogService   BlogServiceInterface
	MyBlogService MyBlogServiceInterface

	// プロフィール
	ProfileService ProfileServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → HTTPMetrics → SecurityHeaders → CORS → CSRF
//
// 認証が必要なルートにはさらに Auth → RateLimit(General) を適用する。
// リアクション系（like / dislike / block）はRateLimit(Reaction)を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	v := deps.Validator
	if v == nil {
		v = validate.New()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.MetricsCollector != nil {
		r.Use(middleware.NewHTTPMetricsMiddleware(deps.MetricsCollector))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewRouteNotFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError())
	})

	authHandler := NewAuthHandler(deps.AuthService, v, deps.AuthConfig)
	blogHandler := NewBlogHandler(deps.BlogService, v)
	myBlogHandler := NewMyBlogHandler(deps.MyBlogService, v)
	profileHandler := NewProfileHandler(deps.ProfileService, v)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.Post("/register", authHandler.Register)
		r.Post("/login-email", authHandler.LoginWithEmail)
		r.Post("/login-mobile", authHandler.LoginWithMobile)
		r.Post("/logout", authHandler.Logout)
		r.Post("/refresh-token", authHandler.RefreshToken)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.ViewerResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/blog", func(r chi.Router) {
			r.Post("/new-blog", blogHandler.CreateBlog)
			r.Get("/all-blogs", blogHandler.ListBlogs)
			r.Get("/latest", blogHandler.LatestBlogs)
			r.Get("/blogs/{id}", blogHandler.GetBlog)

			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.ReactionMiddleware())
				r.Patch("/like/{id}", blogHandler.Like)
				r.Patch("/dislike/{id}", blogHandler.Dislike)
				r.Patch("/block/{id}", blogHandler.ToggleBlock)
			})
		})

		r.Route("/api/my-blog", func(r chi.Router) {
			r.Get("/all-blogs", myBlogHandler.ListMyBlogs)
			r.Get("/blog/{id}", myBlogHandler.GetMyBlog)
			r.Put("/update-blog/{id}", myBlogHandler.UpdateMyBlog)
			r.Delete("/blog/{id}", myBlogHandler.DeleteMyBlog)
			r.Patch("/publish-status/{id}", myBlogHandler.SetPublishStatus)
		})

		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.GetProfile)
			r.Post("/profile", profileHandler.UpdateProfile)
			r.Post("/password", profileHandler.ChangePassword)
			r.Post("/preferences", profileHandler.ChangePreferences)
		})
	})

	return r
}

// healthHandler はDB疎通を確認し、結果を返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.WarnContext(r.Context(), "ヘルスチェックに失敗しました", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
