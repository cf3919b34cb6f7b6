package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/famorg/internal/metrics"
	"github.com/hitoshi/famorg/internal/middleware"
)

// healthCheckTimeout は/healthでのDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はヘルスチェックでDB疎通を確認するためのインターフェース。
// *sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	HSTS              bool
	Logger            *slog.Logger

	// 運用
	HealthChecker  HealthChecker
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	UserService   UserServiceInterface
	FamilyService FamilyServiceInterface
	TaskService   TaskServiceInterface
	DiaryService  DiaryServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Metrics → Recovery → SecurityHeaders → CORS
//	  └ 認証が必要なルート: Authn → CSRF → RateLimit(General)
//
// サインアップ/サインインとJWKSは認証グループの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(mc))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, mc)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig, mc)
	familyHandler := NewFamilyHandler(deps.FamilyService, mc)
	taskHandler := NewTaskHandler(deps.TaskService, mc)
	diaryHandler := NewDiaryHandler(deps.DiaryService, mc)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/sign-up/email", authHandler.SignUp)
		r.With(deps.RateLimiter.SignInMiddleware()).Post("/sign-in/email", authHandler.SignIn)
		r.With(middleware.NewCSRFMiddleware(deps.CSRFConfig)).Post("/sign-out", authHandler.SignOut)
		r.Get("/jwks", authHandler.JWKS)

		// セッションまたはJWTで認証済みの呼び出し元のみ
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthnMiddleware(deps.Authenticator))
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
			r.Get("/get-session", authHandler.GetSession)
			r.Get("/token", authHandler.Token)
			r.Post("/change-password", authHandler.ChangePassword)
		})
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Authn → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthnMiddleware(deps.Authenticator))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Delete("/me", userHandler.Withdraw)
		})

		// ファミリー管理
		r.Route("/api/families", func(r chi.Router) {
			r.Get("/", familyHandler.List)
			r.Post("/", familyHandler.Create)

			r.Route("/{familyID}", func(r chi.Router) {
				r.Get("/", familyHandler.Get)
				r.Get("/karma", familyHandler.Karma)
				r.Post("/members", familyHandler.AddMember)
				r.Patch("/members/{userID}", familyHandler.ChangeRole)
				r.Delete("/members/{userID}", familyHandler.RemoveMember)

				// タスク
				r.Get("/tasks", taskHandler.List)
				r.Post("/tasks", taskHandler.Create)
				r.Post("/tasks/{taskID}/complete", taskHandler.Complete)
				r.Delete("/tasks/{taskID}", taskHandler.Delete)
			})
		})

		// 日記
		r.Route("/api/diary", func(r chi.Router) {
			r.Get("/", diaryHandler.List)
			r.Post("/", diaryHandler.Create)
			r.Get("/{entryID}", diaryHandler.Get)
			r.Put("/{entryID}", diaryHandler.Update)
			r.Delete("/{entryID}", diaryHandler.Delete)
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// checkerがnilの場合はプロセスの生存のみを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
