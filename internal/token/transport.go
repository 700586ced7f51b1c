package token

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/careerboard/internal/model"
)

// TransportConfig はトークンCookieの属性。
type TransportConfig struct {
	CookieName string
	Domain     string
	Secure     bool
}

// Transport はリクエスト/レスポンスでのトークンの受け渡しを一元化する。
//
// 受け取り: 正しい形式の "Authorization: Bearer <token>" ヘッダーがあればそれを優先し、
// なければCookieを使う。
// 送り出し: HttpOnly・SameSite=StrictのCookieを設定し、同じトークンをJSONボディにも含める。
type Transport struct {
	config TransportConfig
}

// NewTransport はTransportを生成する。
func NewTransport(config TransportConfig) *Transport {
	if config.CookieName == "" {
		config.CookieName = "token"
	}
	return &Transport{config: config}
}

// PrincipalView はレスポンスに含めるプリンシパル情報。
type PrincipalView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Kind        model.Kind `json:"kind"`
	DisplayName string     `json:"display_name,omitempty"`
}

// NewPrincipalView はPrincipalからレスポンス表現を作る。
func NewPrincipalView(p *model.Principal) *PrincipalView {
	if p == nil {
		return nil
	}
	return &PrincipalView{ID: p.ID, Email: p.Email, Kind: p.Kind, DisplayName: p.DisplayName}
}

// SessionBody はトークン発行時のレスポンスボディ。
type SessionBody struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Principal *PrincipalView `json:"principal,omitempty"`
}

// Extract はリクエストから生のトークンを取り出す。
func (t *Transport) Extract(r *http.Request) (string, bool) {
	if raw, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return raw, true
	}

	cookie, err := r.Cookie(t.config.CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// SetCookie はトークンCookieのみを設定する。リダイレクト応答で使う。
func (t *Transport) SetCookie(w http.ResponseWriter, tok *model.SessionToken) {
	maxAge := int(time.Until(tok.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     t.config.CookieName,
		Value:    tok.Raw,
		Path:     "/",
		Domain:   t.config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.config.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Attach はCookieを設定し、同じトークンを含むJSONボディを書き込む。
func (t *Transport) Attach(w http.ResponseWriter, status int, tok *model.SessionToken, p *model.Principal) {
	t.SetCookie(w, tok)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(SessionBody{
		Token:     tok.Raw,
		ExpiresAt: tok.ExpiresAt,
		Principal: NewPrincipalView(p),
	}); err != nil {
		slog.Error("failed to encode session body", slog.String("error", err.Error()))
	}
}

// Clear はCookieを即時失効させる。
// ヘッダーで保持されているトークンは有効期限まで無効化できない（ステートレスなため）。
func (t *Transport) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     t.config.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   t.config.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   t.config.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// bearerToken は "Bearer <token>" 形式のヘッダー値からトークンを取り出す。
// スキーム違いや空トークンは不正な形式として扱い、falseを返す。
func bearerToken(header string) (string, bool) {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", false
	}
	return fields[1], true
}
