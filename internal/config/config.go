// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// 企業トークンの有効期間として許容する範囲。
const (
	MinEmployerTokenTTL = 24 * time.Hour
	MaxEmployerTokenTTL = 7 * 24 * time.Hour
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	Environment    string        `env:"APP_ENV" envDefault:"development"`
	ServerPort     string        `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL        string        `env:"BASE_URL,required,notEmpty"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	// X-Forwarded-For等を信頼するのは、それを上書きするリバースプロキシの背後に置く場合のみ
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// Database
	DatabaseURL       string        `env:"DATABASE_URL,required,notEmpty"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	// Token / Password
	JWTSecret               string        `env:"JWT_SECRET,required,notEmpty"`
	CandidateTokenTTL       time.Duration `env:"CANDIDATE_TOKEN_TTL" envDefault:"168h"`
	EmployerTokenTTL        time.Duration `env:"EMPLOYER_TOKEN_TTL" envDefault:"168h"`
	PasswordHashCost        int           `env:"PASSWORD_HASH_COST" envDefault:"10"`
	PasswordHashConcurrency int           `env:"PASSWORD_HASH_CONCURRENCY" envDefault:"0"` // 0はCPU数

	// Google
	GoogleClientID     string   `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string   `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string   `env:"GOOGLE_REDIRECT_URL"`
	GoogleAudiences    []string `env:"GOOGLE_AUDIENCES" envSeparator:","`

	// Cookie
	CookieName   string `env:"COOKIE_NAME" envDefault:"token"`
	CookieDomain string `env:"COOKIE_DOMAIN"`
	CookieSecure bool

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// Rate Limit（req/min）
	RateLimitAuth    int `env:"RATE_LIMIT_AUTH" envDefault:"20"`
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
}

// LoadDotEnv は.envファイルを読み込み、未設定の環境変数のみを補完する。
// ファイルが存在しない場合は何もしない。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は、未設定の変数をまとめてエラーとして返す。
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.CookieSecure = cfg.IsProduction() || strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.GoogleAudiences = cfg.acceptedAudiences()

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.CandidateTokenTTL <= 0 {
		return fmt.Errorf("CANDIDATE_TOKEN_TTL must be positive, got %s", c.CandidateTokenTTL)
	}
	if c.EmployerTokenTTL < MinEmployerTokenTTL || c.EmployerTokenTTL > MaxEmployerTokenTTL {
		return fmt.Errorf("EMPLOYER_TOKEN_TTL must be between %s and %s, got %s",
			MinEmployerTokenTTL, MaxEmployerTokenTTL, c.EmployerTokenTTL)
	}
	// bcryptのコスト範囲（4〜31）
	if c.PasswordHashCost < 4 || c.PasswordHashCost > 31 {
		return fmt.Errorf("PASSWORD_HASH_COST must be between 4 and 31, got %d", c.PasswordHashCost)
	}
	if c.GoogleCodeFlowEnabled() && c.GoogleClientID == "" {
		return errors.New("GOOGLE_CLIENT_ID is required when GOOGLE_CLIENT_SECRET is set")
	}
	return nil
}

// IsProduction は本番環境かどうかを返す。
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// GoogleCodeFlowEnabled はサーバーサイドのGoogle OAuthフローが設定されているかを返す。
func (c *Config) GoogleCodeFlowEnabled() bool {
	return c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// acceptedAudiences はWebクライアントIDを含む重複なしのaudience一覧を返す。
func (c *Config) acceptedAudiences() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, aud := range append([]string{c.GoogleClientID}, c.GoogleAudiences...) {
		aud = strings.TrimSpace(aud)
		if aud == "" {
			continue
		}
		if _, ok := seen[aud]; ok {
			continue
		}
		seen[aud] = struct{}{}
		out = append(out, aud)
	}
	return out
}
