package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/tarkam/internal/metrics"
	"github.com/hitoshi/tarkam/internal/middleware"
	"github.com/hitoshi/tarkam/internal/security"
	"github.com/prometheus/client_golang/prometheus"
)

const healthCheckTimeout = 3 * time.Second

// HealthChecker はデータベースの疎通確認インターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.SessionAuthenticator
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           middleware.StatusRecorder // nil可
	Gatherer          prometheus.Gatherer       // nilの場合は/metricsを公開しない
	CORSAllowedOrigin string                    // カンマ区切りで複数指定可
	Cookies           CookieConfig
	// TrustProxyHeadersがtrueの場合、X-Forwarded-For/X-Real-IPをクライアントIPとして採用する。
	// 信頼できるリバースプロキシの背後でのみ有効にする。
	TrustProxyHeaders bool

	// サービス
	AuthService  AuthService
	Products     ProductService
	Sanitizer    security.TextSanitizerService
	ImageFetcher ImageFetcher
	Health       HealthChecker

	// 表示
	Pages     PageRenderer
	LastLogin *LastLoginStore
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → (RealIP) → Recovery → SecurityHeaders → CORS → Session → Logging → Metrics → RateLimit(General)
//
// セッションはここでは任意の解決のみ行い、ログインが必要なルートにRequireSessionを重ねる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Cookies.Secure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.Authenticator))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(deps.RateLimiter.GeneralMiddleware())

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.Cookies.Secure,
		CookieDomain: deps.Cookies.Domain,
	}
	csrf := middleware.NewCSRFMiddleware(csrfConfig)

	authHandler := NewAuthHandler(deps.AuthService, deps.Pages, deps.LastLogin, deps.Cookies)
	pageHandler := NewPageHandler(deps.Products, deps.Pages, deps.LastLogin)
	productHandler := NewProductHandler(deps.Products)
	feedHandler := NewFeedHandler(deps.Products)
	mobileHandler := NewMobileHandler(deps.Products, deps.Sanitizer)
	proxyHandler := NewProxyHandler(deps.ImageFetcher)

	r.NotFound(withSession(pageHandler.NotFound))

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.Health))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Method(http.MethodGet, "/csrf-token/", middleware.NewCSRFTokenHandler(csrfConfig))

	// フィード
	r.Get("/xml/", feedHandler.XML)
	r.Get("/json/", feedHandler.JSON)
	r.Get("/xml/{id}/", feedHandler.XMLByID)
	r.Get("/json/{id}/", feedHandler.JSONByID)

	// 画像プロキシ
	r.Get("/proxy-image/", proxyHandler.Image)

	// モバイルクライアント（メソッド不一致はハンドラー内で401を返す）
	r.HandleFunc("/create-flutter/", withSession(mobileHandler.CreateProduct))
	r.HandleFunc("/get-flutter/", withSession(mobileHandler.ListProducts))

	// ログイン・登録（クライアントIP単位のレート制限を追加）
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.Get("/register/", authHandler.RegisterPage)
		r.Post("/register/", authHandler.Register)
		r.Get("/login/", authHandler.LoginPage)
		r.Post("/login/", authHandler.Login)

		r.Route("/auth", func(r chi.Router) {
			r.HandleFunc("/login/", authHandler.MobileLogin)
			r.HandleFunc("/register/", authHandler.MobileRegister)
			r.HandleFunc("/logout/", withSession(authHandler.MobileLogout))
		})
	})

	r.With(csrf).Post("/logout/", authHandler.Logout)

	// --- ログインが必要なルート ---
	// ミドルウェアスタック: RequireSession → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession)
		r.Use(csrf)

		r.Get("/", withSession(pageHandler.Main))
		r.Get("/products/", withSession(pageHandler.ProductList))
		r.Get("/products/{id}/", withSession(pageHandler.ProductDetail))

		r.Post("/create-product-ajax/", withSession(productHandler.Create))
		r.Post("/edit-product-ajax/{id}", withSession(productHandler.Edit))
		r.Post("/delete-product-ajax/{id}", withSession(productHandler.Delete))
	})

	return r
}

// healthHandler はデータベースへの疎通を確認する。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := checker.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeText(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeText(w, http.StatusOK, "OK")
	}
}
