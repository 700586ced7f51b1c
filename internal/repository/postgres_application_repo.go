package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/careerboard/internal/model"
)

// PostgresApplicationRepo はPostgreSQLを使用した応募リポジトリ。
// (job_id, candidate_id) の一意制約が重複応募に対する唯一の確実なガードとなる。
type PostgresApplicationRepo struct {
	db *sql.DB
}

// NewPostgresApplicationRepo はPostgresApplicationRepoを生成する。
func NewPostgresApplicationRepo(db *sql.DB) *PostgresApplicationRepo {
	return &PostgresApplicationRepo{db: db}
}

const applicationColumns = `id, job_id, candidate_id, employer_id, status, applied_at, profile_snapshot`

// FindByJobAndCandidate は求人IDと求職者IDで応募を検索する。見つからない場合はnilを返す。
func (r *PostgresApplicationRepo) FindByJobAndCandidate(ctx context.Context, jobID, candidateID string) (*model.Application, error) {
	app, err := scanApplication(r.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE job_id = $1 AND candidate_id = $2`,
		jobID, candidateID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find application by job and candidate: %w", err)
	}
	return app, nil
}

// FindByID は指定IDの応募を取得する。見つからない場合はnilを返す。
func (r *PostgresApplicationRepo) FindByID(ctx context.Context, id string) (*model.Application, error) {
	app, err := scanApplication(r.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find application by ID: %w", err)
	}
	return app, nil
}

// Create は応募を1文のINSERTで作成する。
func (r *PostgresApplicationRepo) Create(ctx context.Context, app *model.Application) error {
	snapshot, err := json.Marshal(app.ProfileSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal profile snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO applications (id, job_id, candidate_id, employer_id, status, applied_at, profile_snapshot)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		app.ID, app.JobID, app.CandidateID, app.EmployerID, string(app.Status), app.AppliedAt, snapshot,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}
	return nil
}

// ListByJob は求人に対する応募を新しい順に取得する。
func (r *PostgresApplicationRepo) ListByJob(ctx context.Context, jobID string) ([]*model.Application, error) {
	return r.list(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE job_id = $1 ORDER BY applied_at DESC`,
		jobID,
	)
}

// ListByCandidate は求職者の応募を新しい順に取得する。
func (r *PostgresApplicationRepo) ListByCandidate(ctx context.Context, candidateID string) ([]*model.Application, error) {
	return r.list(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE candidate_id = $1 ORDER BY applied_at DESC`,
		candidateID,
	)
}

// UpdateStatus は選考状態を更新する。
func (r *PostgresApplicationRepo) UpdateStatus(ctx context.Context, id string, status model.ApplicationStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE applications SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	return expectOneRow(result)
}

func (r *PostgresApplicationRepo) list(ctx context.Context, query string, arg string) ([]*model.Application, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps := []*model.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applications: %w", err)
	}
	return apps, nil
}

func scanApplication(row rowScanner) (*model.Application, error) {
	var (
		app      model.Application
		status   string
		snapshot []byte
	)
	if err := row.Scan(&app.ID, &app.JobID, &app.CandidateID, &app.EmployerID, &status, &app.AppliedAt, &snapshot); err != nil {
		return nil, err
	}
	app.Status = model.ApplicationStatus(status)

	app.ProfileSnapshot = &model.ProfileSnapshot{}
	if err := json.Unmarshal(snapshot, app.ProfileSnapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile snapshot: %w", err)
	}
	return &app, nil
}

// compile-time interface check
var _ ApplicationRepository = (*PostgresApplicationRepo)(nil)
