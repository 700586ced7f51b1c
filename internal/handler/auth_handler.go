package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/careerboard/internal/auth"
	"github.com/hitoshi/careerboard/internal/middleware"
	"github.com/hitoshi/careerboard/internal/model"
	"github.com/hitoshi/careerboard/internal/token"
)

const oauthStateCookie = "oauth_state"

// callbackLandingPage はOAuthコールバック後にBASE_URLへ遷移させるページ。
// Google起点のリダイレクトチェーンはクロスサイト扱いとなり、SameSite=StrictのトークンCookieが
// 遷移先の最初のリクエストに付かない。このページからの遷移は同一サイトとして扱われる。
var callbackLandingPage = template.Must(template.New("callback-landing").Parse(`<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="0;url={{.}}">
<title>サインインしています</title>
</head>
<body>
<p><a href="{{.}}">自動で移動しない場合はこちら</a></p>
</body>
</html>
`))

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	RegisterCandidate(ctx context.Context, in auth.CandidateRegistration) (*auth.Session, error)
	LoginCandidate(ctx context.Context, email, password string) (*auth.Session, error)
	SignInFederated(ctx context.Context, assertion string) (*auth.Session, error)
	GetLoginURL(state string) (string, error)
	HandleOAuthCallback(ctx context.Context, code string) (*auth.Session, error)
	RegisterEmployer(ctx context.Context, in auth.EmployerRegistration) (*auth.Session, error)
	LoginEmployer(ctx context.Context, email, password string) (*auth.Session, error)
}

// SessionTransport はトークンをレスポンスに載せる。
type SessionTransport interface {
	SetCookie(w http.ResponseWriter, tok *model.SessionToken)
	Attach(w http.ResponseWriter, status int, tok *model.SessionToken, p *model.Principal)
	Clear(w http.ResponseWriter)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL      string // OAuthコールバック後の遷移先
	CookieSecure bool
}

// AuthHandler は登録・ログイン・セッション関連のHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	transport SessionTransport
	validator *RequestValidator
	config    AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, transport SessionTransport, v *RequestValidator, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:   service,
		transport: transport,
		validator: v,
		config:    config,
	}
}

type candidateRegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
	FullName string `json:"full_name" validate:"omitempty,max=120"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,maxbytes=72"`
}

// federatedRequest はIDトークンを受け取る。以前のクライアントが送るtokenも同じ意味で受け付け、
// 両方ある場合はid_tokenを優先する。
type federatedRequest struct {
	IDToken string `json:"id_token"`
	Token   string `json:"token"`
}

func (r federatedRequest) assertion() string {
	if r.IDToken != "" {
		return r.IDToken
	}
	return r.Token
}

type employerRegisterRequest struct {
	Email         string `json:"email" validate:"required,email,max=254"`
	Password      string `json:"password" validate:"required,min=8,maxbytes=72"`
	CompanyName   string `json:"company_name" validate:"required,max=200"`
	LogoURL       string `json:"logo_url" validate:"omitempty,max=2048"`
	Website       string `json:"website" validate:"omitempty,max=2048"`
	Description   string `json:"description" validate:"omitempty,max=5000"`
	ContactPerson string `json:"contact_person" validate:"omitempty,max=120"`
	ContactPhone  string `json:"contact_phone" validate:"omitempty,max=40"`
	Address       string `json:"address" validate:"omitempty,max=500"`
}

// RegisterCandidate は求職者をメールアドレスとパスワードで登録する。
// POST /auth/register
func (h *AuthHandler) RegisterCandidate(w http.ResponseWriter, r *http.Request) {
	var req candidateRegisterRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	session, err := h.service.RegisterCandidate(r.Context(), auth.CandidateRegistration{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	h.transport.Attach(w, http.StatusCreated, session.Token, session.Principal)
}

// LoginCandidate は求職者のローカルログインを行う。
// POST /auth/login
func (h *AuthHandler) LoginCandidate(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	session, err := h.service.LoginCandidate(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	h.transport.Attach(w, http.StatusOK, session.Token, session.Principal)
}

// SignInFederated はクライアントSDKが取得したGoogleのIDトークンでサインインする。
// 新規作成時は201、既存アカウントは200を返す。
// POST /auth/federated
func (h *AuthHandler) SignInFederated(w http.ResponseWriter, r *http.Request) {
	var req federatedRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	session, err := h.service.SignInFederated(r.Context(), req.assertion())
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	h.transport.Attach(w, sessionStatus(session), session.Token, session.Principal)
}

// GoogleLogin はGoogleの認可コードフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	url, err := h.service.GetLoginURL(state)
	if errors.Is(err, auth.ErrCodeFlowDisabled) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// GoogleCallback は認可コードを受け取り、サインイン後にフロントエンドへ遷移するページを返す。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		slog.Warn("oauth state mismatch", slog.String("request_id", chimw.GetReqID(r.Context())))
		middleware.WriteErrorResponse(w, model.NewValidationError("stateパラメータが不正です。"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	session, err := h.service.HandleOAuthCallback(r.Context(), r.URL.Query().Get("code"))
	if errors.Is(err, auth.ErrCodeFlowDisabled) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	var page bytes.Buffer
	if err := callbackLandingPage.Execute(&page, h.config.BaseURL); err != nil {
		slog.Error("failed to render callback landing page", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, model.NewInternalError())
		return
	}

	h.transport.SetCookie(w, session.Token)
	writeLandingPage(w, page.Bytes())
}

// writeLandingPage はBASE_URLへ遷移するページを書き込む。
func writeLandingPage(w http.ResponseWriter, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "default-src 'none'")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page); err != nil {
		slog.Warn("failed to write callback landing page", slog.String("error", err.Error()))
	}
}

// Logout はトークンCookieを削除する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.transport.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me は現在のプリンシパルを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrReject(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, token.NewPrincipalView(p))
}

// RegisterEmployer は企業を登録する。
// POST /employers/register
func (h *AuthHandler) RegisterEmployer(w http.ResponseWriter, r *http.Request) {
	var req employerRegisterRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	session, err := h.service.RegisterEmployer(r.Context(), auth.EmployerRegistration{
		Email:         req.Email,
		Password:      req.Password,
		CompanyName:   req.CompanyName,
		LogoURL:       req.LogoURL,
		Website:       req.Website,
		Description:   req.Description,
		ContactPerson: req.ContactPerson,
		ContactPhone:  req.ContactPhone,
		Address:       req.Address,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	h.transport.Attach(w, http.StatusCreated, session.Token, session.Principal)
}

// LoginEmployer は企業のログインを行う。
// POST /employers/login
func (h *AuthHandler) LoginEmployer(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	session, err := h.service.LoginEmployer(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	h.transport.Attach(w, http.StatusOK, session.Token, session.Principal)
}

func sessionStatus(s *auth.Session) int {
	if s.Created {
		return http.StatusCreated
	}
	return http.StatusOK
}

// generateState はOAuthのstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
