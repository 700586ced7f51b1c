// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/careerboard/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
// 呼び出し側はこれを競合（409）として扱う。
var ErrDuplicate = errors.New("duplicate key")

// ErrNotFound は更新対象の行が存在しないことを表す。
// 検索系メソッドは見つからない場合nilを返し、このエラーは使わない。
var ErrNotFound = errors.New("record not found")

// CandidateRepository は求職者データの永続化インターフェース。
type CandidateRepository interface {
	// FindByID は指定IDの求職者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Candidate, error)

	// FindByEmail は正規化済みメールアドレスで求職者を検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Candidate, error)

	// FindByFederatedID は外部IdPのサブジェクトで求職者を検索する。見つからない場合はnilを返す。
	FindByFederatedID(ctx context.Context, federatedID string) (*model.Candidate, error)

	// Create は求職者を作成する。メールアドレスまたは外部IDが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, candidate *model.Candidate) error

	// UpdateProfile は表示名・アバター・プロフィール項目を更新する。
	UpdateProfile(ctx context.Context, candidate *model.Candidate) error

	// UpdatePasswordHash はパスワードハッシュを更新する。
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// EmployerRepository は企業データの永続化インターフェース。
type EmployerRepository interface {
	// FindByID は指定IDの企業を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Employer, error)

	// FindByEmail は正規化済みメールアドレスで企業を検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Employer, error)

	// Create は企業を作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, employer *model.Employer) error
}

// JobRepository は求人データの永続化インターフェース。
type JobRepository interface {
	// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Job, error)

	// Create は求人を作成する。
	Create(ctx context.Context, job *model.Job) error

	// ListActive は募集中の求人を新しい順に取得する。
	ListActive(ctx context.Context, limit int) ([]*model.Job, error)
}

// ApplicationRepository は応募データの永続化インターフェース。
type ApplicationRepository interface {
	// FindByJobAndCandidate は求人IDと求職者IDで応募を検索する。見つからない場合はnilを返す。
	FindByJobAndCandidate(ctx context.Context, jobID, candidateID string) (*model.Application, error)

	// FindByID は指定IDの応募を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Application, error)

	// Create は応募を作成する。(job_id, candidate_id) が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, app *model.Application) error

	// ListByJob は求人に対する応募を新しい順に取得する。
	ListByJob(ctx context.Context, jobID string) ([]*model.Application, error)

	// ListByCandidate は求職者の応募を新しい順に取得する。
	ListByCandidate(ctx context.Context, candidateID string) ([]*model.Application, error)

	// UpdateStatus は選考状態を更新する。対象が存在しない場合はErrNotFoundを返す。
	UpdateStatus(ctx context.Context, id string, status model.ApplicationStatus) error
}
