// Package auth はローカル認証・外部IdP認証とセッショントークンの発行を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/careerboard/internal/metrics"
	"github.com/hitoshi/careerboard/internal/model"
	"github.com/hitoshi/careerboard/internal/repository"
	"github.com/hitoshi/careerboard/internal/security"
)

// ErrCodeFlowDisabled はGoogleの認可コードフローが設定されていないことを表す。
var ErrCodeFlowDisabled = errors.New("oauth code flow is not configured")

// 認証方式のメトリクスラベル
const (
	methodCandidateRegister = "candidate_register"
	methodCandidateLogin    = "candidate_login"
	methodFederated         = "federated"
	methodOAuthCallback     = "oauth_callback"
	methodEmployerRegister  = "employer_register"
	methodEmployerLogin     = "employer_login"
	methodPasswordChange    = "password_change"
)

// dummyPasswordHash は未登録メールアドレスでのログイン時に照合するハッシュ。
// 登録有無で応答時間が変わらないようにする。
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// TokenIssuer はセッショントークンを発行する。
type TokenIssuer interface {
	Issue(p *model.Principal) (*model.SessionToken, error)
}

// Session は認証成功時の結果を表す。
// Createdは今回の操作でアカウントが作成された場合にtrueとなる。
type Session struct {
	Token     *model.SessionToken
	Principal *model.Principal
	Created   bool
}

// CandidateRegistration は求職者のローカル登録入力。
type CandidateRegistration struct {
	Email    string
	Password string
	FullName string
}

// EmployerRegistration は企業のローカル登録入力。
type EmployerRegistration struct {
	Email         string
	Password      string
	CompanyName   string
	LogoURL       string
	Website       string
	Description   string
	ContactPerson string
	ContactPhone  string
	Address       string
}

// ServiceDeps は認証サービスの依存関係。
// OAuthはコードフローを使わない場合nilでよい。Metricsがnilの場合は記録しない。
type ServiceDeps struct {
	Candidates repository.CandidateRepository
	Employers  repository.EmployerRepository
	Hasher     PasswordHasher
	Verifier   FederatedVerifier
	OAuth      OAuthProvider
	Issuer     TokenIssuer
	Sanitizer  security.TextSanitizer
	URLGuard   security.URLGuard
	Metrics    metrics.MetricsCollector
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	candidates repository.CandidateRepository
	employers  repository.EmployerRepository
	hasher     PasswordHasher
	verifier   FederatedVerifier
	oauth      OAuthProvider
	issuer     TokenIssuer
	sanitizer  security.TextSanitizer
	urlGuard   security.URLGuard
	metrics    metrics.MetricsCollector

	newID func() string
	now   func() time.Time
}

// NewService はServiceを生成する。
func NewService(deps ServiceDeps) *Service {
	m := deps.Metrics
	if m == nil {
		m = metrics.Noop{}
	}
	return &Service{
		candidates: deps.Candidates,
		employers:  deps.Employers,
		hasher:     deps.Hasher,
		verifier:   deps.Verifier,
		oauth:      deps.OAuth,
		issuer:     deps.Issuer,
		sanitizer:  deps.Sanitizer,
		urlGuard:   deps.URLGuard,
		metrics:    m,
		newID:      func() string { return uuid.New().String() },
		now:        time.Now,
	}
}

// RegisterCandidate はメールアドレスとパスワードで求職者を登録し、トークンを発行する。
// 氏名が空の場合はメールアドレスの@より前を表示名とする。
func (s *Service) RegisterCandidate(ctx context.Context, in CandidateRegistration) (_ *Session, err error) {
	defer func() { s.record(methodCandidateRegister, err) }()

	email := model.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, model.NewValidationError("メールアドレスとパスワードは必須です。")
	}

	existing, err := s.candidates.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := s.hashPassword(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	name := s.sanitizer.Sanitize(in.FullName)
	if name == "" {
		name = model.EmailLocalPart(email)
	}

	now := s.now()
	candidate := &model.Candidate{
		ID:           s.newID(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		AuthOrigin:   model.AuthOriginLocal,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.candidates.Create(ctx, candidate); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create candidate: %w", err)
	}

	slog.Info("candidate registered",
		slog.String("candidate_id", candidate.ID),
		slog.String("auth_origin", string(candidate.AuthOrigin)),
	)
	return s.issue(model.PrincipalFromCandidate(candidate), true)
}

// LoginCandidate はローカル認証の求職者をログインさせる。
// 未登録とパスワード誤りは同じエラーを返す。外部IdPで登録したアカウントは403とする。
func (s *Service) LoginCandidate(ctx context.Context, email, password string) (_ *Session, err error) {
	defer func() { s.record(methodCandidateLogin, err) }()

	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewValidationError("メールアドレスとパスワードは必須です。")
	}

	candidate, err := s.candidates.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate by email: %w", err)
	}
	if candidate == nil {
		s.hasher.Verify(ctx, password, dummyPasswordHash)
		return nil, model.NewInvalidCredentialsError()
	}
	if candidate.AuthOrigin == model.AuthOriginFederated {
		return nil, model.NewWrongAuthOriginError("このアカウントはGoogleで登録されています。")
	}
	if !s.hasher.Verify(ctx, password, candidate.PasswordHash) {
		return nil, model.NewInvalidCredentialsError()
	}
	if !candidate.IsActive {
		return nil, model.NewAccountDisabledError()
	}

	return s.issue(model.PrincipalFromCandidate(candidate), false)
}

// SignInFederated は外部IdPのIDトークンで求職者をサインインさせる。
// 未登録のメールアドレスであればアカウントを作成する（Created=true）。
func (s *Service) SignInFederated(ctx context.Context, assertion string) (_ *Session, err error) {
	defer func() { s.record(methodFederated, err) }()
	return s.signInFederated(ctx, assertion)
}

func (s *Service) signInFederated(ctx context.Context, assertion string) (*Session, error) {
	if strings.TrimSpace(assertion) == "" {
		return nil, model.NewAssertionMissingError()
	}

	claims, err := s.verifier.Verify(ctx, assertion)
	if err != nil {
		slog.Warn("federated assertion rejected", slog.String("error", err.Error()))
		return nil, model.NewAssertionRejectedError()
	}
	email := model.NormalizeEmail(claims.Email)

	existing, err := s.findForFederated(ctx, claims.Subject, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.signInExistingFederated(existing, claims)
	}

	name := s.sanitizer.Sanitize(claims.Name)
	if name == "" {
		name = model.EmailLocalPart(email)
	}
	avatar := claims.AvatarURL
	if avatar != "" && s.urlGuard.ValidateURL(avatar) != nil {
		avatar = ""
	}

	now := s.now()
	candidate := &model.Candidate{
		ID:          s.newID(),
		Email:       email,
		DisplayName: name,
		FederatedID: claims.Subject,
		AuthOrigin:  model.AuthOriginFederated,
		AvatarURL:   avatar,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.candidates.Create(ctx, candidate); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create federated candidate: %w", err)
		}
		// 同時サインインで先に作成された場合は、そのアカウントとして扱う
		existing, findErr := s.findForFederated(ctx, claims.Subject, email)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, model.NewEmailTakenError()
		}
		return s.signInExistingFederated(existing, claims)
	}

	slog.Info("candidate registered",
		slog.String("candidate_id", candidate.ID),
		slog.String("auth_origin", string(candidate.AuthOrigin)),
	)
	return s.issue(model.PrincipalFromCandidate(candidate), true)
}

// findForFederated は外部IdPのサブジェクト、次にメールアドレスの順で求職者を探す。
// Google側でメールアドレスが変わってもサブジェクトは変わらない。
func (s *Service) findForFederated(ctx context.Context, subject, email string) (*model.Candidate, error) {
	if subject != "" {
		c, err := s.candidates.FindByFederatedID(ctx, subject)
		if err != nil {
			return nil, fmt.Errorf("failed to find candidate by federated id: %w", err)
		}
		if c != nil {
			return c, nil
		}
	}
	c, err := s.candidates.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate by email: %w", err)
	}
	return c, nil
}

// signInExistingFederated は登録済みアカウントへの外部IdPサインインを判定する。
// ローカル登録のアカウントや、別の外部IDに紐づいたアカウントは403とする。
func (s *Service) signInExistingFederated(c *model.Candidate, claims *VerifiedClaims) (*Session, error) {
	if c.AuthOrigin != model.AuthOriginFederated {
		return nil, model.NewWrongAuthOriginError("このアカウントはメールアドレスとパスワードで登録されています。")
	}
	if c.FederatedID != claims.Subject {
		slog.Warn("federated subject mismatch", slog.String("candidate_id", c.ID))
		return nil, model.NewWrongAuthOriginError("このメールアドレスは別のGoogleアカウントに紐づいています。")
	}
	if !c.IsActive {
		return nil, model.NewAccountDisabledError()
	}
	return s.issue(model.PrincipalFromCandidate(c), false)
}

// GetLoginURL はGoogleの認可画面のURLを返す。
func (s *Service) GetLoginURL(state string) (string, error) {
	if s.oauth == nil {
		return "", ErrCodeFlowDisabled
	}
	return s.oauth.GetLoginURL(state), nil
}

// HandleOAuthCallback は認可コードをIDトークンに交換し、外部IdPサインインを行う。
func (s *Service) HandleOAuthCallback(ctx context.Context, code string) (_ *Session, err error) {
	if s.oauth == nil {
		return nil, ErrCodeFlowDisabled
	}
	defer func() { s.record(methodOAuthCallback, err) }()

	if code == "" {
		return nil, model.NewValidationError("認可コードが指定されていません。")
	}

	idToken, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		slog.Warn("oauth code exchange failed", slog.String("error", err.Error()))
		return nil, model.NewAssertionRejectedError()
	}
	return s.signInFederated(ctx, idToken)
}

// RegisterEmployer は企業を登録し、トークンを発行する。
func (s *Service) RegisterEmployer(ctx context.Context, in EmployerRegistration) (_ *Session, err error) {
	defer func() { s.record(methodEmployerRegister, err) }()

	email := model.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, model.NewValidationError("メールアドレスとパスワードは必須です。")
	}
	companyName := s.sanitizer.Sanitize(in.CompanyName)
	if companyName == "" {
		return nil, model.NewValidationError("会社名は必須です。")
	}
	if in.LogoURL != "" && s.urlGuard.ValidateURL(in.LogoURL) != nil {
		return nil, model.NewInvalidURLError("ロゴ")
	}
	if in.Website != "" && s.urlGuard.ValidateURL(in.Website) != nil {
		return nil, model.NewInvalidURLError("Webサイト")
	}

	existing, err := s.employers.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find employer by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := s.hashPassword(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	employer := &model.Employer{
		ID:            s.newID(),
		Email:         email,
		CompanyName:   companyName,
		PasswordHash:  hash,
		LogoURL:       in.LogoURL,
		Website:       in.Website,
		Description:   s.sanitizer.Sanitize(in.Description),
		ContactPerson: s.sanitizer.Sanitize(in.ContactPerson),
		ContactPhone:  strings.TrimSpace(in.ContactPhone),
		Address:       s.sanitizer.Sanitize(in.Address),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.employers.Create(ctx, employer); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create employer: %w", err)
	}

	slog.Info("employer registered", slog.String("employer_id", employer.ID))
	return s.issue(model.PrincipalFromEmployer(employer), true)
}

// LoginEmployer は企業をログインさせる。
func (s *Service) LoginEmployer(ctx context.Context, email, password string) (_ *Session, err error) {
	defer func() { s.record(methodEmployerLogin, err) }()

	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewValidationError("メールアドレスとパスワードは必須です。")
	}

	employer, err := s.employers.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find employer by email: %w", err)
	}
	if employer == nil {
		s.hasher.Verify(ctx, password, dummyPasswordHash)
		return nil, model.NewInvalidCredentialsError()
	}
	if !s.hasher.Verify(ctx, password, employer.PasswordHash) {
		return nil, model.NewInvalidCredentialsError()
	}

	return s.issue(model.PrincipalFromEmployer(employer), false)
}

// ChangeCandidatePassword はローカル認証の求職者のパスワードを変更する。
// 現在のパスワードが一致しない場合は401、外部IdPのアカウントは403とする。
func (s *Service) ChangeCandidatePassword(ctx context.Context, candidateID, current, next string) (err error) {
	defer func() { s.record(methodPasswordChange, err) }()

	if current == "" || next == "" {
		return model.NewValidationError("現在のパスワードと新しいパスワードは必須です。")
	}

	candidate, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("failed to find candidate: %w", err)
	}
	if candidate == nil {
		return model.NewAccountGoneError()
	}
	if candidate.AuthOrigin == model.AuthOriginFederated {
		return model.NewWrongAuthOriginError("Googleで登録したアカウントにはパスワードを設定できません。")
	}
	if !s.hasher.Verify(ctx, current, candidate.PasswordHash) {
		return model.NewInvalidCredentialsError()
	}

	hash, err := s.hashPassword(ctx, next)
	if err != nil {
		return err
	}
	if err := s.candidates.UpdatePasswordHash(ctx, candidateID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewAccountGoneError()
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("candidate password changed", slog.String("candidate_id", candidateID))
	return nil
}

// hashPassword は新しいパスワードをハッシュ化する。
// bcryptの上限バイト数を超える場合は入力値エラーとする。
func (s *Service) hashPassword(ctx context.Context, secret string) (string, error) {
	hash, err := s.hasher.Hash(ctx, secret)
	if errors.Is(err, ErrSecretTooLong) {
		return "", model.NewPasswordTooLongError(MaxSecretBytes)
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// issue はプリンシパルに対するトークンを発行する。
func (s *Service) issue(p *model.Principal, created bool) (*Session, error) {
	tok, err := s.issuer.Issue(p)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: tok, Principal: p, Created: created}, nil
}

// record は認証試行の結果をメトリクスに記録する。
func (s *Service) record(method string, err error) {
	s.metrics.RecordAuthAttempt(method, outcomeOf(err))
}

// outcomeOf はエラーをメトリクスの結果ラベルに変換する。
func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return metrics.OutcomeError
	}
	switch apiErr.Category {
	case model.CategoryConflict:
		return metrics.OutcomeConflict
	case model.CategoryValidation:
		return metrics.OutcomeRejected
	case model.CategoryAuthentication, model.CategoryAuthorization, model.CategoryNotFound:
		return metrics.OutcomeFailure
	default:
		return metrics.OutcomeError
	}
}
