package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/genstudio/internal/auth"
	"github.com/hitoshi/genstudio/internal/metrics"
	"github.com/hitoshi/genstudio/internal/middleware"
	"github.com/hitoshi/genstudio/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 監視
	HealthChecks   []HealthCheck
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// 認証・ゲート
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	OnLogout    func(sessionID string)
	Hub         *auth.Hub
	GateConfig  GateHandlerConfig

	// 生成フォーム
	Workspaces      WorkspaceProvider
	PromptSanitizer security.PromptSanitizerService
	StudioConfig    StudioHandlerConfig
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	  /api/* : Session → CSRF → RateLimit(General) [→ RateLimit(Generation)]
//
// ゲート画面と認証ルートはセッション必須のチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(metrics.Instrument(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.OnLogout)
	gateHandler := NewGateHandler(deps.AuthService, deps.Hub, deps.GateConfig, logger)
	studioHandler := NewStudioHandler(deps.Workspaces, deps.PromptSanitizer, deps.StudioConfig, logger)

	// --- 認証不要のルート ---
	r.Get("/", gateHandler.Page)
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecks, 0))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
		r.Get("/state", gateHandler.StateStream)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		generation := deps.RateLimiter.GenerationMiddleware()

		r.Route("/api/image", func(r chi.Router) {
			r.Get("/options", studioHandler.GetImageForm)
			r.Put("/options", studioHandler.UpdateImageForm)
			r.With(generation).Post("/generate", studioHandler.GenerateImage)
			r.With(generation).Post("/regenerate", studioHandler.RegenerateImage)
			r.Get("/results", studioHandler.ListImageResults)
			r.Get("/results/{index}/download", studioHandler.DownloadImage)
		})

		r.Route("/api/video", func(r chi.Router) {
			r.Get("/options", studioHandler.GetVideoForm)
			r.Put("/options", studioHandler.UpdateVideoForm)
			r.With(generation).Post("/generate", studioHandler.GenerateVideo)
			r.With(generation).Post("/regenerate", studioHandler.RegenerateVideo)
			r.Get("/results", studioHandler.ListVideoResults)
			r.Get("/results/{index}/download", studioHandler.DownloadVideo)
			r.Post("/results/{id}/toggle", studioHandler.TogglePlayback)
		})
	})

	return r
}
