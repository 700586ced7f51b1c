package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/careerboard/internal/metrics"
	"github.com/hitoshi/careerboard/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	Metrics            metrics.MetricsCollector
	MetricsHandler     http.Handler // nilの場合は/metricsを公開しない
	CORSAllowedOrigins []string
	HSTS               bool
	RequestTimeout     time.Duration
	TrustProxyHeaders  bool                    // trueの場合のみX-Forwarded-For等からクライアントIPを取る
	RateLimiter        *middleware.RateLimiter // nilの場合はレート制限なし
	Guard              *middleware.AccessGuard
	Validator          *RequestValidator
	DB                 Pinger

	// 認証
	AuthService     AuthServiceInterface
	AuthConfig      AuthHandlerConfig
	Transport       SessionTransport
	PasswordChanger PasswordChanger

	// 求職者・求人・応募
	CandidateService   CandidateServiceInterface
	JobService         JobServiceInterface
	ApplicationService ApplicationServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → (RealIP) → Logging → Recovery → SecurityHeaders → CORS → Timeout
//
// 保護されたルートではAccessGuardの後にAPI全般のレート制限を置き、プリンシパル単位で数える。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	if len(deps.CORSAllowedOrigins) > 0 {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	}
	if deps.RequestTimeout > 0 {
		r.Use(chimw.Timeout(deps.RequestTimeout))
	}

	authLimit, generalLimit := passthrough, passthrough
	if deps.RateLimiter != nil {
		authLimit = deps.RateLimiter.AuthMiddleware()
		generalLimit = deps.RateLimiter.GeneralMiddleware()
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Transport, deps.Validator, deps.AuthConfig)
	candidateHandler := NewCandidateHandler(deps.CandidateService, deps.PasswordChanger, deps.ApplicationService, deps.Validator)
	jobHandler := NewJobHandler(deps.JobService, deps.Validator)
	applicationHandler := NewApplicationHandler(deps.ApplicationService, deps.Validator)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, middleware.ErrorResponseBody{Error: "エンドポイントが見つかりません。", Code: "ROUTE_NOT_FOUND"})
	})

	// --- 認証不要のルート ---

	if deps.DB != nil {
		r.Get("/health", HealthHandler(deps.DB))
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authLimit)
			r.Post("/register", authHandler.RegisterCandidate)
			r.Post("/login", authHandler.LoginCandidate)
			r.Post("/federated", authHandler.SignInFederated)
			r.Get("/google/login", authHandler.GoogleLogin)
			r.Get("/google/callback", authHandler.GoogleCallback)
		})
		r.Post("/logout", authHandler.Logout)
		r.With(deps.Guard.RequireAny(), generalLimit).Get("/me", authHandler.Me)
	})

	r.Route("/employers", func(r chi.Router) {
		r.Use(authLimit)
		r.Post("/register", authHandler.RegisterEmployer)
		r.Post("/login", authHandler.LoginEmployer)
	})

	r.With(generalLimit).Get("/jobs", jobHandler.List)

	// --- 求職者のルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.Guard.RequireCandidate())
		r.Use(generalLimit)

		r.Route("/candidates/me", func(r chi.Router) {
			r.Get("/", candidateHandler.GetMe)
			r.Patch("/", candidateHandler.UpdateMe)
			r.With(authLimit).Put("/password", candidateHandler.ChangePassword)
			r.Get("/applications", candidateHandler.MyApplications)
		})

		r.Post("/jobs/{id}/apply", applicationHandler.Apply)
	})

	// --- 企業のルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.Guard.RequireEmployer())
		r.Use(generalLimit)

		r.Post("/jobs", jobHandler.Create)
		r.Get("/applications", applicationHandler.ListForJob)
		r.Patch("/applications/{id}/status", applicationHandler.UpdateStatus)
	})

	return r
}

func passthrough(next http.Handler) http.Handler {
	return next
}
