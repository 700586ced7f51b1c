// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Kind はプリンシパルの種別（トークンの判別子）を表す。
type Kind string

const (
	// KindCandidate は求職者を表す。
	KindCandidate Kind = "candidate"
	// KindEmployer は採用企業を表す。
	KindEmployer Kind = "employer"
)

// Valid は既知の種別かどうかを返す。
func (k Kind) Valid() bool {
	return k == KindCandidate || k == KindEmployer
}

// Label はユーザー向けメッセージに使う種別名を返す。
func (k Kind) Label() string {
	switch k {
	case KindCandidate:
		return "求職者"
	case KindEmployer:
		return "企業"
	default:
		return string(k)
	}
}

// AuthOrigin は求職者アカウントの認証方式を表す。
type AuthOrigin string

const (
	// AuthOriginLocal はメールアドレスとパスワードで登録したアカウント。
	AuthOriginLocal AuthOrigin = "local"
	// AuthOriginFederated は外部IdP（Google）で登録したアカウント。
	AuthOriginFederated AuthOrigin = "federated"
)

// Candidate は求職者を表す。
// PasswordHashはローカル登録、FederatedIDは外部IdP登録の場合のみ値を持つ。
type Candidate struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	FederatedID  string
	AuthOrigin   AuthOrigin
	AvatarURL    string
	IsActive     bool
	Profile      CandidateProfile
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CandidateProfile は求職者が随時更新するプロフィール項目。
// 構造化項目は保存時のJSON文字列のまま保持し、読み出し側で防御的にパースする。
type CandidateProfile struct {
	MobileNumber        string
	Gender              string
	ExperienceLevel     string
	CTCExpected         *float64
	ProfessionalDetails string
	Projects            string
	Skills              string
	Education           string
	Certifications      string
	Languages           string
	ResumeURL           string
}

// Employer は採用企業を表す。企業アカウントは常にローカル認証。
type Employer struct {
	ID            string
	Email         string
	CompanyName   string
	PasswordHash  string
	LogoURL       string
	Website       string
	Description   string
	ContactPerson string
	ContactPhone  string
	Address       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Principal は認証済みの主体を表す。
// 求職者ルートではCandidateに最新のレコードが入る。企業ルートではトークンのクレームのみ。
type Principal struct {
	ID          string
	Email       string
	Kind        Kind
	DisplayName string
	Candidate   *Candidate
}

// PrincipalFromCandidate は求職者レコードからPrincipalを生成する。
func PrincipalFromCandidate(c *Candidate) *Principal {
	return &Principal{
		ID:          c.ID,
		Email:       c.Email,
		Kind:        KindCandidate,
		DisplayName: c.DisplayName,
		Candidate:   c,
	}
}

// PrincipalFromEmployer は企業レコードからPrincipalを生成する。
func PrincipalFromEmployer(e *Employer) *Principal {
	return &Principal{
		ID:          e.ID,
		Email:       e.Email,
		Kind:        KindEmployer,
		DisplayName: e.CompanyName,
	}
}

// SessionToken は署名済みのセッショントークンを表す。サーバー側には保存しない。
type SessionToken struct {
	Raw       string
	SubjectID string
	Email     string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NormalizeEmail は比較・保存用にメールアドレスを正規化する（前後空白除去と小文字化）。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailLocalPart はメールアドレスの@より前の部分を返す。表示名の既定値に使う。
func EmailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
