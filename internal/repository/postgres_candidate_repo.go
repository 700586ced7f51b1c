package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/careerboard/internal/model"
)

const candidateColumns = `id, email, full_name, password_hash, federated_id, auth_origin, avatar_url, is_active,
	mobile_number, gender, experience_level, ctc_expected,
	professional_details, projects, skills, education, certifications, languages, resume_url,
	created_at, updated_at`

// PostgresCandidateRepo はPostgreSQLを使用した求職者リポジトリ。
type PostgresCandidateRepo struct {
	db *sql.DB
}

// NewPostgresCandidateRepo はPostgresCandidateRepoを生成する。
func NewPostgresCandidateRepo(db *sql.DB) *PostgresCandidateRepo {
	return &PostgresCandidateRepo{db: db}
}

// FindByID は指定IDの求職者を取得する。見つからない場合はnilを返す。
func (r *PostgresCandidateRepo) FindByID(ctx context.Context, id string) (*model.Candidate, error) {
	c, err := scanCandidate(r.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate by ID: %w", err)
	}
	return c, nil
}

// FindByEmail はメールアドレスで求職者を検索する。見つからない場合はnilを返す。
func (r *PostgresCandidateRepo) FindByEmail(ctx context.Context, email string) (*model.Candidate, error) {
	c, err := scanCandidate(r.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE email = $1`,
		email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate by email: %w", err)
	}
	return c, nil
}

// FindByFederatedID は外部IdPのサブジェクトで求職者を検索する。見つからない場合はnilを返す。
func (r *PostgresCandidateRepo) FindByFederatedID(ctx context.Context, federatedID string) (*model.Candidate, error) {
	c, err := scanCandidate(r.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE federated_id = $1`,
		federatedID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate by federated ID: %w", err)
	}
	return c, nil
}

// Create は求職者を作成する。
func (r *PostgresCandidateRepo) Create(ctx context.Context, c *model.Candidate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO candidates (id, email, full_name, password_hash, federated_id, auth_origin,
		   avatar_url, is_active, mobile_number, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.Email, c.DisplayName, nullString(c.PasswordHash), nullString(c.FederatedID),
		string(c.AuthOrigin), nullString(c.AvatarURL), c.IsActive, nullString(c.Profile.MobileNumber),
		c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert candidate: %w", err)
	}
	return nil
}

// UpdateProfile は表示名・アバター・プロフィール項目を更新する。
func (r *PostgresCandidateRepo) UpdateProfile(ctx context.Context, c *model.Candidate) error {
	p := c.Profile
	result, err := r.db.ExecContext(ctx,
		`UPDATE candidates SET
		   full_name = $2, avatar_url = $3, mobile_number = $4, gender = $5, experience_level = $6,
		   ctc_expected = $7, professional_details = $8, projects = $9, skills = $10, education = $11,
		   certifications = $12, languages = $13, resume_url = $14, updated_at = $15
		 WHERE id = $1`,
		c.ID, c.DisplayName, nullString(c.AvatarURL), nullString(p.MobileNumber), nullString(p.Gender),
		nullString(p.ExperienceLevel), nullFloat(p.CTCExpected), nullString(p.ProfessionalDetails),
		nullString(p.Projects), nullString(p.Skills), nullString(p.Education),
		nullString(p.Certifications), nullString(p.Languages), nullString(p.ResumeURL), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update candidate profile: %w", err)
	}
	return expectOneRow(result)
}

// UpdatePasswordHash はパスワードハッシュを更新する。
func (r *PostgresCandidateRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE candidates SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	return expectOneRow(result)
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (*model.Candidate, error) {
	var (
		c                                                    model.Candidate
		origin                                               string
		passwordHash, federatedID, avatarURL, mobile, gender sql.NullString
		experience, details, projects, skills, education     sql.NullString
		certifications, languages, resumeURL                 sql.NullString
		ctc                                                  sql.NullFloat64
	)
	err := row.Scan(
		&c.ID, &c.Email, &c.DisplayName, &passwordHash, &federatedID, &origin, &avatarURL, &c.IsActive,
		&mobile, &gender, &experience, &ctc,
		&details, &projects, &skills, &education, &certifications, &languages, &resumeURL,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.PasswordHash = passwordHash.String
	c.FederatedID = federatedID.String
	c.AuthOrigin = model.AuthOrigin(origin)
	c.AvatarURL = avatarURL.String
	c.Profile = model.CandidateProfile{
		MobileNumber:        mobile.String,
		Gender:              gender.String,
		ExperienceLevel:     experience.String,
		CTCExpected:         floatPtr(ctc),
		ProfessionalDetails: details.String,
		Projects:            projects.String,
		Skills:              skills.String,
		Education:           education.String,
		Certifications:      certifications.String,
		Languages:           languages.String,
		ResumeURL:           resumeURL.String,
	}
	return &c, nil
}

// expectOneRow は更新件数が0の場合にErrNotFoundを返す。
func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ CandidateRepository = (*PostgresCandidateRepo)(nil)
