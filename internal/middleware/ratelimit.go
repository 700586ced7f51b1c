package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hitoshi/careerboard/internal/metrics"
	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	AuthRate        rate.Limit    // 認証系エンドポイントのレート（req/sec、IP単位）
	AuthBurst       int           // 認証系エンドポイントのバーストサイズ
	GeneralRate     rate.Limit    // API全般のレート（req/sec、プリンシパルまたはIP単位）
	GeneralBurst    int           // API全般のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 認証系 20 req/min/IP、API全般 120 req/min。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(20, 120)
}

// NewRateLimiterConfig は1分あたりのリクエスト数からレート制限設定を作る。
func NewRateLimiterConfig(authPerMinute, generalPerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		AuthRate:        rate.Limit(float64(authPerMinute) / 60.0),
		AuthBurst:       authPerMinute,
		GeneralRate:     rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst:    generalPerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// keyedLimiter はキーごとのレートリミッターとアクセス時刻を保持する。
type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet はキーごとのリミッターの集合。
type limiterSet struct {
	mu       sync.RWMutex
	limiters map[string]*keyedLimiter
	rate     rate.Limit
	burst    int
}

func newLimiterSet(r rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		limiters: make(map[string]*keyedLimiter),
		rate:     r,
		burst:    burst,
	}
}

// get はキーのリミッターを取得または作成する。
func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.RLock()
	kl, exists := s.limiters[key]
	s.mu.RUnlock()

	if exists {
		s.mu.Lock()
		kl.lastAccess = time.Now()
		s.mu.Unlock()
		return kl.limiter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ダブルチェック
	if kl, exists := s.limiters[key]; exists {
		kl.lastAccess = time.Now()
		return kl.limiter
	}

	limiter := rate.NewLimiter(s.rate, s.burst)
	s.limiters[key] = &keyedLimiter{limiter: limiter, lastAccess: time.Now()}
	return limiter
}

// evict は最終アクセスがttlより古いエントリを削除する。
func (s *limiterSet) evict(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, kl := range s.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

func (s *limiterSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}

// RateLimiter はレート制限を管理する。
// 認証系エンドポイント向けのIP単位の制限と、API全般の制限の2種類を提供する。
type RateLimiter struct {
	config  RateLimiterConfig
	auth    *limiterSet
	general *limiterSet
	metrics metrics.MetricsCollector

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig, mc metrics.MetricsCollector) *RateLimiter {
	if mc == nil {
		mc = metrics.Noop{}
	}
	rl := &RateLimiter{
		config:  config,
		auth:    newLimiterSet(config.AuthRate, config.AuthBurst),
		general: newLimiterSet(config.GeneralRate, config.GeneralBurst),
		metrics: mc,
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// AuthMiddleware はログイン・登録など認証系エンドポイント向けのIP単位のレート制限を返す。
// パスワード総当たりを抑えるため、API全般より厳しい値を設定する。
func (rl *RateLimiter) AuthMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			if !rl.auth.get(key).Allow() {
				rl.deny(w, "auth", key, rl.config.AuthRate)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// AccessGuardの後に配置した場合はプリンシパル単位、そうでなければIP単位で制限する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := generalKey(r)
			if !rl.general.get(key).Allow() {
				rl.deny(w, "general", key, rl.config.GeneralRate)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthLimiterCount は現在管理されている認証系リミッターのエントリ数を返す。
func (rl *RateLimiter) AuthLimiterCount() int {
	return rl.auth.len()
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

func (rl *RateLimiter) deny(w http.ResponseWriter, scope, key string, r rate.Limit) {
	rl.metrics.RecordRateLimited(scope)
	slog.Warn("rate limit exceeded",
		slog.String("key", key),
		slog.String("limit_type", scope),
	)
	writeRateLimitResponse(w, r)
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
	now := time.Now()
	rl.auth.evict(now, ttl)
	rl.general.evict(now, ttl)
}

// generalKey はプリンシパルがあればそのID、なければクライアントIPをキーにする。
func generalKey(r *http.Request) string {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		return string(p.Kind) + ":" + p.ID
	}
	return "ip:" + clientIP(r)
}

// clientIP はRemoteAddrからIPを取り出す。
// プロキシヘッダーはここでは読まない。信頼できるプロキシの背後ではルーター側でRealIPを有効にする。
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
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
		if retryAfterSec < 1 {
			retryAfterSec = 1
		}
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Error:  "リクエストが多すぎます。",
		Code:   "RATE_LIMIT_EXCEEDED",
		Action: "しばらく待ってから再度お試しください。",
	})
}
