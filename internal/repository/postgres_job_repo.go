package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/careerboard/internal/model"
	"github.com/lib/pq"
)

// PostgresJobRepo はPostgreSQLを使用した求人リポジトリ。
type PostgresJobRepo struct {
	db *sql.DB
}

// NewPostgresJobRepo はPostgresJobRepoを生成する。
func NewPostgresJobRepo(db *sql.DB) *PostgresJobRepo {
	return &PostgresJobRepo{db: db}
}

// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
func (r *PostgresJobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := scanJob(r.db.QueryRowContext(ctx,
		`SELECT id, employer_id, title, description, skills, status, created_at
		 FROM jobs WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find job by ID: %w", err)
	}
	return job, nil
}

// Create は求人を作成する。
func (r *PostgresJobRepo) Create(ctx context.Context, job *model.Job) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, employer_id, title, description, skills, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.EmployerID, job.Title, job.Description, pq.StringArray(job.Skills),
		string(job.Status), job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// ListActive は募集中の求人を新しい順に取得する。
func (r *PostgresJobRepo) ListActive(ctx context.Context, limit int) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, employer_id, title, description, skills, status, created_at
		 FROM jobs WHERE status = 'active'
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job    model.Job
		skills pq.StringArray
		status string
	)
	if err := row.Scan(&job.ID, &job.EmployerID, &job.Title, &job.Description, &skills, &status, &job.CreatedAt); err != nil {
		return nil, err
	}
	job.Skills = []string(skills)
	job.Status = model.JobStatus(status)
	return &job, nil
}

// compile-time interface check
var _ JobRepository = (*PostgresJobRepo)(nil)
