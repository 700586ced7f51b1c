// Package candidate は求職者プロフィールの参照と更新を提供する。
package candidate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/careerboard/internal/model"
	"github.com/hitoshi/careerboard/internal/repository"
	"github.com/hitoshi/careerboard/internal/security"
)

// ProfileUpdate はプロフィールの部分更新を表す。nilの項目は変更しない。
// 空文字を指定した文字列項目は値を消去する。
type ProfileUpdate struct {
	FullName        *string
	AvatarURL       *string
	MobileNumber    *string
	Gender          *string
	ExperienceLevel *string
	CTCExpected     *float64
	ResumeURL       *string

	// 構造化項目はJSONのまま受け取り、形だけ検証して保存する。
	ProfessionalDetails json.RawMessage
	Projects            json.RawMessage
	Skills              json.RawMessage
	Education           json.RawMessage
	Certifications      json.RawMessage
	Languages           json.RawMessage
}

// Service は求職者プロフィールのサービス層。
type Service struct {
	candidates repository.CandidateRepository
	sanitizer  security.TextSanitizer
	urlGuard   security.URLGuard
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	candidates repository.CandidateRepository,
	sanitizer security.TextSanitizer,
	urlGuard security.URLGuard,
) *Service {
	return &Service{
		candidates: candidates,
		sanitizer:  sanitizer,
		urlGuard:   urlGuard,
		now:        time.Now,
	}
}

// Get は求職者のプロフィールを返す。
func (s *Service) Get(ctx context.Context, candidateID string) (*model.Candidate, error) {
	c, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate: %w", err)
	}
	if c == nil {
		return nil, model.NewProfileNotFoundError()
	}
	return c, nil
}

// UpdateProfile はプロフィールを部分更新して更新後の値を返す。
// 既存の応募のスナップショットには影響しない。
func (s *Service) UpdateProfile(ctx context.Context, candidateID string, upd ProfileUpdate) (*model.Candidate, error) {
	c, err := s.Get(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(c, upd); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now()

	if err := s.candidates.UpdateProfile(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewProfileNotFoundError()
		}
		return nil, fmt.Errorf("failed to update candidate profile: %w", err)
	}

	slog.Info("candidate profile updated", slog.String("candidate_id", c.ID))
	return c, nil
}

// apply は更新内容を検証しながらcに反映する。検証エラーの場合cは途中まで変更されうる。
func (s *Service) apply(c *model.Candidate, upd ProfileUpdate) error {
	p := &c.Profile

	if upd.FullName != nil {
		name := s.sanitizer.Sanitize(*upd.FullName)
		if name == "" {
			return model.NewValidationError("氏名を空にすることはできません。")
		}
		c.DisplayName = name
	}
	if upd.MobileNumber != nil {
		p.MobileNumber = strings.TrimSpace(*upd.MobileNumber)
	}
	if upd.Gender != nil {
		p.Gender = s.sanitizer.Sanitize(*upd.Gender)
	}
	if upd.ExperienceLevel != nil {
		p.ExperienceLevel = s.sanitizer.Sanitize(*upd.ExperienceLevel)
	}
	if upd.CTCExpected != nil {
		if *upd.CTCExpected < 0 {
			return model.NewValidationError("希望年収は0以上で指定してください。")
		}
		v := *upd.CTCExpected
		p.CTCExpected = &v
	}

	if upd.AvatarURL != nil {
		v, err := s.checkURL(*upd.AvatarURL, "アバター")
		if err != nil {
			return err
		}
		c.AvatarURL = v
	}
	if upd.ResumeURL != nil {
		v, err := s.checkURL(*upd.ResumeURL, "履歴書")
		if err != nil {
			return err
		}
		p.ResumeURL = v
	}

	fields := []struct {
		raw    json.RawMessage
		dst    *string
		label  string
		object bool
	}{
		{upd.ProfessionalDetails, &p.ProfessionalDetails, "professional_details", true},
		{upd.Projects, &p.Projects, "projects", false},
		{upd.Skills, &p.Skills, "skills", false},
		{upd.Education, &p.Education, "education", false},
		{upd.Certifications, &p.Certifications, "certifications", false},
		{upd.Languages, &p.Languages, "languages", false},
	}
	for _, f := range fields {
		if f.raw == nil {
			continue
		}
		v, err := normalizeStructured(f.raw, f.object)
		if err != nil {
			return model.NewValidationError(fmt.Sprintf("%sの形式が不正です: %v", f.label, err))
		}
		*f.dst = v
	}
	return nil
}

// checkURL は空文字（消去）を許し、それ以外は公開httpsのURLのみ受け付ける。
func (s *Service) checkURL(raw, label string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if err := s.urlGuard.ValidateURL(raw); err != nil {
		slog.Warn("profile url rejected", slog.String("field", label), slog.String("error", err.Error()))
		return "", model.NewInvalidURLError(label)
	}
	return raw, nil
}

// normalizeStructured は構造化項目を検証し、保存用のコンパクトなJSON文字列にする。
// nullは値の消去として空文字を返す。
func normalizeStructured(raw json.RawMessage, object bool) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}

	if object {
		var v map[string]any
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return "", errors.New("JSON object expected")
		}
	} else {
		var v []json.RawMessage
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return "", errors.New("JSON array expected")
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", err
	}
	return buf.String(), nil
}
