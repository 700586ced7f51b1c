// Package job は求人の掲載と募集中求人の一覧を提供する。
package job

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/careerboard/internal/model"
	"github.com/hitoshi/careerboard/internal/repository"
	"github.com/hitoshi/careerboard/internal/security"
)

const (
	// DefaultListLimit は一覧の既定件数。
	DefaultListLimit = 50
	// MaxListLimit は一覧の最大件数。
	MaxListLimit = 100
	// maxSkills は1求人に設定できるスキル数の上限。
	maxSkills = 30
)

// Posting は求人掲載の入力。
type Posting struct {
	Title       string
	Description string
	Skills      []string
}

// Service は求人のサービス層。
type Service struct {
	jobs      repository.JobRepository
	sanitizer security.TextSanitizer
	newID     func() string
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(jobs repository.JobRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{
		jobs:      jobs,
		sanitizer: sanitizer,
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}
}

// Create は企業として求人を掲載する。掲載直後の求人は募集中となる。
func (s *Service) Create(ctx context.Context, p *model.Principal, in Posting) (*model.Job, error) {
	if p == nil || p.Kind != model.KindEmployer {
		return nil, model.NewWrongKindError(model.KindEmployer)
	}

	title := s.sanitizer.Sanitize(in.Title)
	if title == "" {
		return nil, model.NewValidationError("求人タイトルは必須です。")
	}
	skills := s.normalizeSkills(in.Skills)
	if len(skills) > maxSkills {
		return nil, model.NewValidationError(fmt.Sprintf("スキルは%d件まで指定できます。", maxSkills))
	}

	job := &model.Job{
		ID:          s.newID(),
		EmployerID:  p.ID,
		Title:       title,
		Description: s.sanitizer.Sanitize(in.Description),
		Skills:      skills,
		Status:      model.JobStatusActive,
		CreatedAt:   s.now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	slog.Info("job posted",
		slog.String("job_id", job.ID),
		slog.String("employer_id", job.EmployerID),
	)
	return job, nil
}

// ListActive は募集中の求人を新しい順に返す。limitは1〜MaxListLimitに丸める。
func (s *Service) ListActive(ctx context.Context, limit int) ([]*model.Job, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	jobs, err := s.jobs.ListActive(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}
	return jobs, nil
}

// normalizeSkills はサニタイズ・小文字化で重複を除いたスキル一覧を返す。順序は入力順。
func (s *Service) normalizeSkills(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		skill := s.sanitizer.Sanitize(raw)
		if skill == "" {
			continue
		}
		key := strings.ToLower(skill)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, skill)
	}
	return out
}
