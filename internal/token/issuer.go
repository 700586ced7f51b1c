// Package token はセッショントークンの発行・検証と、HTTPでの受け渡しを提供する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/careerboard/internal/model"
)

const issuerName = "careerboard"

var (
	// ErrMissingSecret は署名鍵が未設定であることを表す。起動時に検出する。
	ErrMissingSecret = errors.New("token signing secret is not configured")
	// ErrTokenExpired は有効期限切れのトークンを表す。
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid は署名不正・形式不正・未知の種別のトークンを表す。
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims はセッショントークンのクレーム。
// 種別にかかわらず {id, email, kind} の同一形状で、kindが判別子となる。
type Claims struct {
	PrincipalID string     `json:"id"`
	Email       string     `json:"email"`
	Kind        model.Kind `json:"kind"`
	jwt.RegisteredClaims
}

// IssuerConfig はトークンの有効期間設定。
type IssuerConfig struct {
	CandidateTTL time.Duration
	EmployerTTL  time.Duration
}

// Issuer はHS256で署名したステートレスなセッショントークンを発行・検証する。
type Issuer struct {
	secret []byte
	config IssuerConfig
	now    func() time.Time
}

// NewIssuer はIssuerを生成する。署名鍵が空の場合はErrMissingSecretを返す。
func NewIssuer(secret string, config IssuerConfig) (*Issuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if config.CandidateTTL <= 0 {
		config.CandidateTTL = 7 * 24 * time.Hour
	}
	if config.EmployerTTL <= 0 {
		config.EmployerTTL = 7 * 24 * time.Hour
	}
	return &Issuer{
		secret: []byte(secret),
		config: config,
		now:    time.Now,
	}, nil
}

// TTL は種別ごとの有効期間を返す。
func (i *Issuer) TTL(kind model.Kind) time.Duration {
	if kind == model.KindEmployer {
		return i.config.EmployerTTL
	}
	return i.config.CandidateTTL
}

// Issue はプリンシパルに対するトークンを発行する。
// jtiを毎回ランダムに振るため、同一秒内の再発行でも異なる値になる。
func (i *Issuer) Issue(p *model.Principal) (*model.SessionToken, error) {
	if p == nil || p.ID == "" {
		return nil, errors.New("principal is required")
	}
	if !p.Kind.Valid() {
		return nil, fmt.Errorf("unknown principal kind: %q", p.Kind)
	}

	issuedAt := i.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.TTL(p.Kind))

	claims := Claims{
		PrincipalID: p.ID,
		Email:       p.Email,
		Kind:        p.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   p.ID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &model.SessionToken{
		Raw:       raw,
		SubjectID: p.ID,
		Email:     p.Email,
		Kind:      p.Kind,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Parse は署名・有効期限・発行者を検証してクレームを返す。
// 期限切れはErrTokenExpired、それ以外の失敗はすべてErrTokenInvalidになる。
func (i *Issuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuerName),
		jwt.WithTimeFunc(i.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !claims.Kind.Valid() || claims.PrincipalID == "" || claims.PrincipalID != claims.Subject {
		return nil, fmt.Errorf("%w: malformed claims", ErrTokenInvalid)
	}

	return claims, nil
}
