// Package application は求人への応募の送信と、企業側の応募管理を提供する。
package application

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
)

// Service は応募のビジネスロジックを提供する。
type Service struct {
	apps       repository.ApplicationRepository
	candidates repository.CandidateRepository
	jobs       repository.JobRepository
	metrics    metrics.MetricsCollector

	newID func() string
	now   func() time.Time
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(
	apps repository.ApplicationRepository,
	candidates repository.CandidateRepository,
	jobs repository.JobRepository,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Noop{}
	}
	return &Service{
		apps:       apps,
		candidates: candidates,
		jobs:       jobs,
		metrics:    mc,
		newID:      func() string { return uuid.New().String() },
		now:        time.Now,
	}
}

// Apply は求職者として求人に応募し、作成した応募IDを返す。
//
// 事前の重複確認は早期に409を返すためのもので、同時応募に対する最終的なガードは
// ストレージの (job_id, candidate_id) 一意制約となる。挿入時の一意制約違反も409とする。
// スナップショットは挿入前に作るため、途中で失敗した場合は何も書き込まれない。
func (s *Service) Apply(ctx context.Context, p *model.Principal, jobID string) (_ string, err error) {
	defer func() { s.metrics.RecordApplicationSubmission(submissionOutcome(err)) }()

	if p == nil || p.Kind != model.KindCandidate {
		return "", model.NewWrongKindError(model.KindCandidate)
	}
	jobID, err = parseID(jobID, "求人ID")
	if err != nil {
		return "", err
	}

	// 1. 既存の応募
	existing, err := s.apps.FindByJobAndCandidate(ctx, jobID, p.ID)
	if err != nil {
		return "", fmt.Errorf("failed to check existing application: %w", err)
	}
	if existing != nil {
		return "", model.NewAlreadyAppliedError()
	}

	// 2. 最新のプロフィール
	candidate, err := s.candidates.FindByID(ctx, p.ID)
	if err != nil {
		return "", fmt.Errorf("failed to find candidate: %w", err)
	}
	if candidate == nil {
		slog.Warn("principal has no candidate profile", slog.String("candidate_id", p.ID))
		return "", model.NewProfileNotFoundError()
	}

	// 3. 募集中の求人
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("failed to find job: %w", err)
	}
	if job == nil || job.Status != model.JobStatusActive {
		return "", model.NewJobNotFoundError(jobID)
	}

	// 4. スナップショット
	now := s.now()
	snapshot, err := BuildSnapshot(candidate, now)
	if err != nil {
		return "", fmt.Errorf("failed to build profile snapshot: %w", err)
	}

	// 5. 挿入
	app := &model.Application{
		ID:              s.newID(),
		JobID:           job.ID,
		CandidateID:     candidate.ID,
		EmployerID:      job.EmployerID,
		Status:          model.ApplicationStatusApplied,
		AppliedAt:       now,
		ProfileSnapshot: snapshot,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return "", model.NewAlreadyAppliedError()
		}
		return "", fmt.Errorf("failed to create application: %w", err)
	}

	slog.Info("application submitted",
		slog.String("application_id", app.ID),
		slog.String("job_id", app.JobID),
		slog.String("candidate_id", app.CandidateID),
		slog.String("employer_id", app.EmployerID),
	)
	return app.ID, nil
}

// ListForJob は求人に対する応募をスナップショット付きで返す。求人を掲載した企業のみ参照できる。
func (s *Service) ListForJob(ctx context.Context, p *model.Principal, jobID string) ([]*model.Application, error) {
	if p == nil || p.Kind != model.KindEmployer {
		return nil, model.NewWrongKindError(model.KindEmployer)
	}
	jobID, err := parseID(jobID, "求人ID")
	if err != nil {
		return nil, err
	}

	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	if job == nil {
		return nil, model.NewJobNotFoundError(jobID)
	}
	if job.EmployerID != p.ID {
		slog.Warn("application list denied",
			slog.String("job_id", jobID),
			slog.String("employer_id", p.ID),
		)
		return nil, model.NewNotJobOwnerError()
	}

	apps, err := s.apps.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, nil
}

// ListForCandidate は求職者自身の応募履歴を返す。
func (s *Service) ListForCandidate(ctx context.Context, p *model.Principal) ([]*model.Application, error) {
	if p == nil || p.Kind != model.KindCandidate {
		return nil, model.NewWrongKindError(model.KindCandidate)
	}
	apps, err := s.apps.ListByCandidate(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate applications: %w", err)
	}
	return apps, nil
}

// UpdateStatus は企業側で選考状態を変更する。応募先の求人を掲載した企業のみ変更できる。
func (s *Service) UpdateStatus(ctx context.Context, p *model.Principal, applicationID string, status model.ApplicationStatus) (*model.Application, error) {
	if p == nil || p.Kind != model.KindEmployer {
		return nil, model.NewWrongKindError(model.KindEmployer)
	}
	applicationID, err := parseID(applicationID, "応募ID")
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("選考状態が不正です: %s", status))
	}

	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	if app == nil {
		return nil, model.NewApplicationNotFoundError(applicationID)
	}
	if app.EmployerID != p.ID {
		return nil, model.NewNotJobOwnerError()
	}

	if err := s.apps.UpdateStatus(ctx, applicationID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewApplicationNotFoundError(applicationID)
		}
		return nil, fmt.Errorf("failed to update application status: %w", err)
	}

	slog.Info("application status updated",
		slog.String("application_id", applicationID),
		slog.String("from", string(app.Status)),
		slog.String("to", string(status)),
	)
	app.Status = status
	return app, nil
}

// parseID は必須のUUID形式IDを検証して正規化した文字列を返す。
func parseID(raw, label string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", model.NewValidationError(fmt.Sprintf("%sは必須です。", label))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", model.NewValidationError(fmt.Sprintf("%sの形式が不正です。", label))
	}
	return id.String(), nil
}

// submissionOutcome は応募送信の結果をメトリクスのラベルに変換する。
func submissionOutcome(err error) string {
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
	case model.CategoryInternal:
		return metrics.OutcomeError
	default:
		return metrics.OutcomeRejected
	}
}
