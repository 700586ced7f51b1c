// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/careerboard/internal/metrics"
	"github.com/hitoshi/careerboard/internal/model"
	"github.com/hitoshi/careerboard/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証済みプリンシパルを格納するためのキー。
var principalContextKey = contextKey("principal")

// TokenExtractor はリクエストから生のトークンを取り出す。token.Transportが実装する。
type TokenExtractor interface {
	Extract(r *http.Request) (string, bool)
}

// TokenParser はトークンを検証してクレームを返す。token.Issuerが実装する。
type TokenParser interface {
	Parse(raw string) (*token.Claims, error)
}

// CandidateFinder は求職者レコードを取得する。
// repository.CandidateRepositoryの部分集合として定義する。
type CandidateFinder interface {
	FindByID(ctx context.Context, id string) (*model.Candidate, error)
}

// guardState はアクセスガードの判定段階。拒否時のログに記録する。
type guardState string

const (
	stateUnresolved     guardState = "unresolved"
	stateTokenExtracted guardState = "token_extracted"
	stateDecoded        guardState = "decoded"
	stateKindChecked    guardState = "kind_checked"
)

// 拒否理由（メトリクスのラベル）
const (
	reasonNoToken         = "no_token"
	reasonInvalid         = "invalid_signature"
	reasonExpired         = "expired"
	reasonWrongKind       = "wrong_kind"
	reasonAccountGone     = "account_gone"
	reasonAccountDisabled = "account_disabled"
	reasonLookupFailed    = "lookup_failed"
)

// rejection はガードの拒否結果。
type rejection struct {
	state  guardState
	reason string
	err    *model.APIError
}

// AccessGuard はリクエストごとにトークンを解決し、ルートが期待する種別を強制する。
//
// 判定は Unresolved → TokenExtracted → Decoded → KindChecked → PrincipalAttached の順に一方向に進み、
// どの段階で拒否しても以降の処理は行わない。
// 求職者ルートでは毎回レコードを取り直して最新のプロフィールと無効化を反映し、
// 企業ルートではトークンのクレームをそのまま使う。
type AccessGuard struct {
	transport  TokenExtractor
	parser     TokenParser
	candidates CandidateFinder
	metrics    metrics.MetricsCollector
}

// NewAccessGuard はAccessGuardを生成する。mcがnilの場合はメトリクスを記録しない。
func NewAccessGuard(transport TokenExtractor, parser TokenParser, candidates CandidateFinder, mc metrics.MetricsCollector) *AccessGuard {
	if mc == nil {
		mc = metrics.Noop{}
	}
	return &AccessGuard{
		transport:  transport,
		parser:     parser,
		candidates: candidates,
		metrics:    mc,
	}
}

// RequireCandidate は求職者トークンのみを通すミドルウェアを返す。
func (g *AccessGuard) RequireCandidate() func(next http.Handler) http.Handler {
	return g.require(model.KindCandidate)
}

// RequireEmployer は企業トークンのみを通すミドルウェアを返す。
func (g *AccessGuard) RequireEmployer() func(next http.Handler) http.Handler {
	return g.require(model.KindEmployer)
}

// RequireAny は種別を問わず有効なトークンを通すミドルウェアを返す。
// レコードの取り直しは行わず、クレームからプリンシパルを組み立てる。
func (g *AccessGuard) RequireAny() func(next http.Handler) http.Handler {
	return g.require("")
}

func (g *AccessGuard) require(expected model.Kind) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, rej := g.resolve(r, expected)
			if rej != nil {
				g.reject(w, r, expected, rej)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// resolve はトークンからプリンシパルを解決する。
func (g *AccessGuard) resolve(r *http.Request, expected model.Kind) (*model.Principal, *rejection) {
	raw, ok := g.transport.Extract(r)
	if !ok {
		return nil, &rejection{state: stateUnresolved, reason: reasonNoToken, err: model.NewNoTokenError()}
	}

	claims, err := g.parser.Parse(raw)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, &rejection{state: stateTokenExtracted, reason: reasonExpired, err: model.NewTokenExpiredError()}
		}
		return nil, &rejection{state: stateTokenExtracted, reason: reasonInvalid, err: model.NewInvalidTokenError()}
	}

	if expected != "" && claims.Kind != expected {
		return nil, &rejection{state: stateDecoded, reason: reasonWrongKind, err: model.NewWrongKindError(expected)}
	}

	if expected != model.KindCandidate {
		return &model.Principal{
			ID:    claims.PrincipalID,
			Email: claims.Email,
			Kind:  claims.Kind,
		}, nil
	}

	c, err := g.candidates.FindByID(r.Context(), claims.PrincipalID)
	if err != nil {
		slog.Error("failed to load candidate for token",
			slog.String("candidate_id", claims.PrincipalID),
			slog.String("error", err.Error()),
		)
		return nil, &rejection{state: stateKindChecked, reason: reasonLookupFailed, err: model.NewInternalError()}
	}
	if c == nil {
		return nil, &rejection{state: stateKindChecked, reason: reasonAccountGone, err: model.NewAccountGoneError()}
	}
	if !c.IsActive {
		return nil, &rejection{state: stateKindChecked, reason: reasonAccountDisabled, err: model.NewAccountDisabledError()}
	}
	return model.PrincipalFromCandidate(c), nil
}

func (g *AccessGuard) reject(w http.ResponseWriter, r *http.Request, expected model.Kind, rej *rejection) {
	g.metrics.RecordGuardRejection(rej.reason)

	expectedKind := string(expected)
	if expectedKind == "" {
		expectedKind = "any"
	}
	slog.Warn("access denied",
		slog.String("path", r.URL.Path),
		slog.String("state", string(rej.state)),
		slog.String("reason", rej.reason),
		slog.String("expected_kind", expectedKind),
		slog.String("request_id", requestID(r)),
	)
	WriteErrorResponse(w, rej.err)
}

// PrincipalFromContext はリクエストコンテキストから認証済みプリンシパルを取得する。
// AccessGuardを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	return p, ok && p != nil
}

// ContextWithPrincipal はコンテキストにプリンシパルを注入する。
// ロギングミドルウェアの配下であれば、アクセスログにもプリンシパルを記録させる。
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.setPrincipal(p)
	}
	return context.WithValue(ctx, principalContextKey, p)
}
