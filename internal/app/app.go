// Package app はコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/careerboard/internal/application"
	"github.com/hitoshi/careerboard/internal/auth"
	"github.com/hitoshi/careerboard/internal/candidate"
	"github.com/hitoshi/careerboard/internal/config"
	"github.com/hitoshi/careerboard/internal/database"
	"github.com/hitoshi/careerboard/internal/handler"
	"github.com/hitoshi/careerboard/internal/job"
	"github.com/hitoshi/careerboard/internal/logger"
	"github.com/hitoshi/careerboard/internal/metrics"
	"github.com/hitoshi/careerboard/internal/middleware"
	"github.com/hitoshi/careerboard/internal/repository"
	"github.com/hitoshi/careerboard/internal/security"
	"github.com/hitoshi/careerboard/internal/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// verifierHTTPTimeout はGoogleの公開鍵取得に使うHTTPクライアントのタイムアウト。
const verifierHTTPTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envの補完と環境変数の読み込み
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("environment", cfg.Environment),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg, migrateDirection(args))
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続
	db, err := database.OpenWithPool(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mc := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	candidateRepo := repository.NewPostgresCandidateRepo(db)
	employerRepo := repository.NewPostgresEmployerRepo(db)
	jobRepo := repository.NewPostgresJobRepo(db)
	applicationRepo := repository.NewPostgresApplicationRepo(db)

	// 4. セキュリティ・トークン
	sanitizer := security.NewTextSanitizer()
	urlGuard := security.NewURLGuard()

	issuer, err := token.NewIssuer(cfg.JWTSecret, token.IssuerConfig{
		CandidateTTL: cfg.CandidateTokenTTL,
		EmployerTTL:  cfg.EmployerTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}
	transport := token.NewTransport(token.TransportConfig{
		CookieName: cfg.CookieName,
		Domain:     cfg.CookieDomain,
		Secure:     cfg.CookieSecure,
	})

	// 5. 外部IdP
	verifier, err := auth.NewGoogleVerifier(ctx, cfg.GoogleAudiences, urlGuard.NewSafeClient(verifierHTTPTimeout))
	if err != nil {
		return fmt.Errorf("failed to create google verifier: %w", err)
	}
	if len(cfg.GoogleAudiences) == 0 {
		slog.Warn("no google audiences configured, federated sign-in will reject every assertion")
	}

	var oauthProvider auth.OAuthProvider
	if cfg.GoogleCodeFlowEnabled() {
		oauthProvider = auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			HTTPClient:   urlGuard.NewSafeClient(verifierHTTPTimeout),
		})
	}

	// 6. ドメインサービスの初期化
	authService := auth.NewService(auth.ServiceDeps{
		Candidates: candidateRepo,
		Employers:  employerRepo,
		Hasher:     auth.NewBcryptHasher(cfg.PasswordHashCost, cfg.PasswordHashConcurrency),
		Verifier:   verifier,
		OAuth:      oauthProvider,
		Issuer:     issuer,
		Sanitizer:  sanitizer,
		URLGuard:   urlGuard,
		Metrics:    mc,
	})
	candidateService := candidate.NewService(candidateRepo, sanitizer, urlGuard)
	jobService := job.NewService(jobRepo, sanitizer)
	applicationService := application.NewService(applicationRepo, candidateRepo, jobRepo, mc)

	validator, err := handler.NewRequestValidator()
	if err != nil {
		return err
	}

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitAuth, cfg.RateLimitGeneral), mc)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             slog.Default(),
		Metrics:            mc,
		MetricsHandler:     metrics.Handler(registry),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		HSTS:               cfg.IsProduction(),
		RequestTimeout:     cfg.RequestTimeout,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
		RateLimiter:        rateLimiter,
		Guard:              middleware.NewAccessGuard(transport, issuer, candidateRepo, mc),
		Validator:          validator,
		DB:                 db,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:      cfg.BaseURL,
			CookieSecure: cfg.CookieSecure,
		},
		Transport:       transport,
		PasswordChanger: authService,

		CandidateService:   candidateService,
		JobService:         jobService,
		ApplicationService: applicationService,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.Bool("google_code_flow", oauthProvider != nil),
			slog.Int("google_audiences", len(cfg.GoogleAudiences)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// directionが"down"の場合は直近の1つを取り消し、それ以外は未適用分をすべて適用する。
func runMigrate(cfg *config.Config, direction string) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.String("direction", direction),
	)

	var err error
	if direction == "down" {
		err = database.RollbackMigration(cfg.DatabaseURL)
	} else {
		err = database.RunMigrations(cfg.DatabaseURL)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		slog.Warn("failed to read schema version", slog.String("error", err.Error()))
	} else {
		slog.Info("database migrations completed successfully",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
