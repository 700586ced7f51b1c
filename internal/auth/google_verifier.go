package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// ErrAssertionRejected は外部IDトークンを受け入れられないことを表す。
// 理由（署名、期限、audience等）はラップしたメッセージにのみ含め、呼び出し側では区別しない。
var ErrAssertionRejected = errors.New("identity assertion rejected")

// googleIssuers はGoogleが発行するIDトークンのiss値。
var googleIssuers = map[string]struct{}{
	"accounts.google.com":         {},
	"https://accounts.google.com": {},
}

// VerifiedClaims は検証済みの外部IDトークンから取り出した情報。
type VerifiedClaims struct {
	Subject   string
	Email     string
	Name      string
	AvatarURL string
	Audience  string
}

// FederatedVerifier は外部IdPのIDトークンを検証する。
type FederatedVerifier interface {
	// Verify は署名・有効期限・audienceを検証する。失敗時は常にErrAssertionRejectedを返す。
	Verify(ctx context.Context, assertion string) (*VerifiedClaims, error)
}

// payloadValidator はidtoken.Validatorのうち検証に使う部分。テストで差し替える。
type payloadValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// GoogleVerifier はGoogleのIDトークンを検証するFederatedVerifier実装。
// WebとモバイルなどクライアントごとにIDが異なるため、audienceは設定された集合で判定する。
type GoogleVerifier struct {
	validator payloadValidator
	audiences map[string]struct{}
}

// NewGoogleVerifier はGoogleVerifierを生成する。
// httpClientは公開鍵の取得に使う。nilの場合はidtokenのデフォルトを使う。
func NewGoogleVerifier(ctx context.Context, audiences []string, httpClient *http.Client) (*GoogleVerifier, error) {
	var opts []option.ClientOption
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	v, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create id token validator: %w", err)
	}

	return newGoogleVerifier(v, audiences), nil
}

func newGoogleVerifier(v payloadValidator, audiences []string) *GoogleVerifier {
	set := make(map[string]struct{}, len(audiences))
	for _, aud := range audiences {
		if aud = strings.TrimSpace(aud); aud != "" {
			set[aud] = struct{}{}
		}
	}
	return &GoogleVerifier{validator: v, audiences: set}
}

// Verify はIDトークンを検証して主要なクレームを返す。
func (g *GoogleVerifier) Verify(ctx context.Context, assertion string) (*VerifiedClaims, error) {
	assertion = strings.TrimSpace(assertion)
	if assertion == "" {
		return nil, fmt.Errorf("%w: empty assertion", ErrAssertionRejected)
	}
	if len(g.audiences) == 0 {
		return nil, fmt.Errorf("%w: no accepted audiences configured", ErrAssertionRejected)
	}

	// 1. 署名と有効期限の検証（audienceは下で集合に対して判定する）
	payload, err := g.validator.Validate(ctx, assertion, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssertionRejected, err)
	}

	// 2. 発行者
	if _, ok := googleIssuers[payload.Issuer]; !ok {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrAssertionRejected, payload.Issuer)
	}

	// 3. audience
	if _, ok := g.audiences[payload.Audience]; !ok {
		slog.Warn("id token audience not accepted", slog.String("audience", payload.Audience))
		return nil, fmt.Errorf("%w: audience %q not accepted", ErrAssertionRejected, payload.Audience)
	}

	// 4. 必須クレーム
	email := claimString(payload.Claims, "email")
	if payload.Subject == "" || email == "" {
		return nil, fmt.Errorf("%w: missing subject or email", ErrAssertionRejected)
	}
	if !claimBool(payload.Claims, "email_verified") {
		return nil, fmt.Errorf("%w: email not verified", ErrAssertionRejected)
	}

	return &VerifiedClaims{
		Subject:   payload.Subject,
		Email:     email,
		Name:      claimString(payload.Claims, "name"),
		AvatarURL: claimString(payload.Claims, "picture"),
		Audience:  payload.Audience,
	}, nil
}

func claimString(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// claimBool はbool値と文字列"true"の両方を受け付ける（古いトークンは文字列で返す）。
func claimBool(claims map[string]any, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// compile-time interface check
var _ FederatedVerifier = (*GoogleVerifier)(nil)
