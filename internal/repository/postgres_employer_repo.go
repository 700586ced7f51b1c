package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/careerboard/internal/model"
)

// PostgresEmployerRepo はPostgreSQLを使用した企業リポジトリ。
type PostgresEmployerRepo struct {
	db *sql.DB
}

// NewPostgresEmployerRepo はPostgresEmployerRepoを生成する。
func NewPostgresEmployerRepo(db *sql.DB) *PostgresEmployerRepo {
	return &PostgresEmployerRepo{db: db}
}

const employerColumns = `id, email, company_name, password_hash, logo_url, website, description,
	contact_person, contact_phone, address, created_at, updated_at`

// FindByID は指定IDの企業を取得する。見つからない場合はnilを返す。
func (r *PostgresEmployerRepo) FindByID(ctx context.Context, id string) (*model.Employer, error) {
	e, err := scanEmployer(r.db.QueryRowContext(ctx,
		`SELECT `+employerColumns+` FROM employers WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find employer by ID: %w", err)
	}
	return e, nil
}

// FindByEmail はメールアドレスで企業を検索する。見つからない場合はnilを返す。
func (r *PostgresEmployerRepo) FindByEmail(ctx context.Context, email string) (*model.Employer, error) {
	e, err := scanEmployer(r.db.QueryRowContext(ctx,
		`SELECT `+employerColumns+` FROM employers WHERE email = $1`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find employer by email: %w", err)
	}
	return e, nil
}

// Create は企業を作成する。
func (r *PostgresEmployerRepo) Create(ctx context.Context, e *model.Employer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO employers (id, email, company_name, password_hash, logo_url, website, description,
		   contact_person, contact_phone, address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.Email, e.CompanyName, e.PasswordHash, nullString(e.LogoURL), nullString(e.Website),
		nullString(e.Description), nullString(e.ContactPerson), nullString(e.ContactPhone),
		nullString(e.Address), e.CreatedAt, e.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert employer: %w", err)
	}
	return nil
}

func scanEmployer(row rowScanner) (*model.Employer, error) {
	var (
		e                                       model.Employer
		logo, website, description, person      sql.NullString
		phone, address                          sql.NullString
	)
	err := row.Scan(&e.ID, &e.Email, &e.CompanyName, &e.PasswordHash, &logo, &website, &description,
		&person, &phone, &address, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.LogoURL = logo.String
	e.Website = website.String
	e.Description = description.String
	e.ContactPerson = person.String
	e.ContactPhone = phone.String
	e.Address = address.String
	return &e, nil
}

// compile-time interface check
var _ EmployerRepository = (*PostgresEmployerRepo)(nil)
