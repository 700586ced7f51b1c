package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/careerboard/internal/metrics"
	"github.com/hitoshi/careerboard/internal/model"
)

// requestInfoContextKey はアクセスログ用のリクエスト情報を格納するキー。
var requestInfoContextKey = contextKey("request_info")

// requestInfo は下流のハンドラーで判明した情報をアクセスログへ渡す。
// ガードは内側のルートグループで動くため、コンテキスト経由では外側に値が戻らない。
type requestInfo struct {
	mu        sync.Mutex
	principal *model.Principal
}

func (i *requestInfo) setPrincipal(p *model.Principal) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.principal = p
}

func (i *requestInfo) getPrincipal() *model.Principal {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.principal
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// Unwrap はhttp.ResponseControllerが元のResponseWriterに到達できるようにする。
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、request_id、認証済みの場合はprincipal_idとkindを含む。
// mcがnilでなければステータスコードと処理時間をメトリクスにも記録する。
func NewLoggingMiddleware(logger *slog.Logger, mc metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if mc == nil {
		mc = metrics.Noop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			info := &requestInfo{}
			r = r.WithContext(context.WithValue(r.Context(), requestInfoContextKey, info))
			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)
			mc.RecordHTTPStatus(rec.statusCode)
			mc.RecordRequestLatency(duration)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}
			if id := requestID(r); id != "" {
				args = append(args, slog.String("request_id", id))
			}
			if p := info.getPrincipal(); p != nil {
				args = append(args,
					slog.String("principal_id", p.ID),
					slog.String("principal_kind", string(p.Kind)),
				)
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}

// requestID はchiのRequestIDミドルウェアが付与したIDを返す。
func requestID(r *http.Request) string {
	return chimw.GetReqID(r.Context())
}
