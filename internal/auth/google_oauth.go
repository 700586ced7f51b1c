package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuthProvider はサーバーサイドの認可コードフローを抽象化する。
// 交換で得たIDトークンはFederatedVerifierで検証する。
type OAuthProvider interface {
	// GetLoginURL は認可画面のURLを返す。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをIDトークンに交換する。
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// トークン交換に使うHTTPクライアント。nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
}

// GoogleOAuthProvider はGoogle OAuth 2.0の認可コードフローを提供する。
type GoogleOAuthProvider struct {
	oauth      *oauth2.Config
	httpClient *http.Client
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	endpoint := google.Endpoint
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &GoogleOAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		httpClient: config.HTTPClient,
	}
}

// GetLoginURL はGoogle OAuthの認証URLを生成する。
func (p *GoogleOAuthProvider) GetLoginURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// ExchangeCode は認可コードを交換し、レスポンスに含まれるid_tokenを返す。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code: %w", err)
	}

	idToken, ok := tok.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", errors.New("token response does not contain id_token")
	}
	return idToken, nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
