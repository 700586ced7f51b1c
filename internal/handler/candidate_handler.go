package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/careerboard/internal/candidate"
	"github.com/hitoshi/careerboard/internal/middleware"
	"github.com/hitoshi/careerboard/internal/model"
)

// CandidateServiceInterface は求職者ハンドラーが必要とするプロフィールサービス。
type CandidateServiceInterface interface {
	Get(ctx context.Context, candidateID string) (*model.Candidate, error)
	UpdateProfile(ctx context.Context, candidateID string, upd candidate.ProfileUpdate) (*model.Candidate, error)
}

// PasswordChanger はパスワード変更を行う。
type PasswordChanger interface {
	ChangeCandidatePassword(ctx context.Context, candidateID, current, next string) error
}

// CandidateApplicationLister は求職者自身の応募一覧を返す。
type CandidateApplicationLister interface {
	ListForCandidate(ctx context.Context, p *model.Principal) ([]*model.Application, error)
}

// CandidateHandler は求職者向けのHTTPハンドラー。
type CandidateHandler struct {
	profiles     CandidateServiceInterface
	passwords    PasswordChanger
	applications CandidateApplicationLister
	validator    *RequestValidator
}

// NewCandidateHandler はCandidateHandlerを生成する。
func NewCandidateHandler(
	profiles CandidateServiceInterface,
	passwords PasswordChanger,
	applications CandidateApplicationLister,
	v *RequestValidator,
) *CandidateHandler {
	return &CandidateHandler{
		profiles:     profiles,
		passwords:    passwords,
		applications: applications,
		validator:    v,
	}
}

// profileUpdateRequest はプロフィール更新リクエストのボディ。省略した項目は変更しない。
type profileUpdateRequest struct {
	FullName        *string  `json:"full_name" validate:"omitempty,max=120"`
	AvatarURL       *string  `json:"avatar_url" validate:"omitempty,max=2048"`
	MobileNumber    *string  `json:"mobile_number" validate:"omitempty,max=40"`
	Gender          *string  `json:"gender" validate:"omitempty,max=40"`
	ExperienceLevel *string  `json:"experience_level" validate:"omitempty,max=80"`
	CTCExpected     *float64 `json:"ctc_expected" validate:"omitempty,gte=0"`
	ResumeURL       *string  `json:"resume_url" validate:"omitempty,max=2048"`

	ProfessionalDetails json.RawMessage `json:"professional_details"`
	Projects            json.RawMessage `json:"projects"`
	Skills              json.RawMessage `json:"skills"`
	Education           json.RawMessage `json:"education"`
	Certifications      json.RawMessage `json:"certifications"`
	Languages           json.RawMessage `json:"languages"`
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,maxbytes=72"`
	NewPassword     string `json:"new_password" validate:"required,min=8,maxbytes=72"`
}

// GetMe は自分のプロフィールを返す。
// GET /candidates/me
func (h *CandidateHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrReject(w, r)
	if !ok {
		return
	}

	c := p.Candidate
	if c == nil {
		var err error
		if c, err = h.profiles.Get(r.Context(), p.ID); err != nil {
			middleware.WriteError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, newCandidateResponse(c))
}

// UpdateMe はプロフィールを部分更新する。
// PATCH /candidates/me
func (h *CandidateHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrReject(w, r)
	if !ok {
		return
	}

	var req profileUpdateRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	updated, err := h.profiles.UpdateProfile(r.Context(), p.ID, candidate.ProfileUpdate{
		FullName:            req.FullName,
		AvatarURL:           req.AvatarURL,
		MobileNumber:        req.MobileNumber,
		Gender:              req.Gender,
		ExperienceLevel:     req.ExperienceLevel,
		CTCExpected:         req.CTCExpected,
		ResumeURL:           req.ResumeURL,
		ProfessionalDetails: req.ProfessionalDetails,
		Projects:            req.Projects,
		Skills:              req.Skills,
		Education:           req.Education,
		Certifications:      req.Certifications,
		Languages:           req.Languages,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCandidateResponse(updated))
}

// ChangePassword はパスワードを変更する。
// PUT /candidates/me/password
func (h *CandidateHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrReject(w, r)
	if !ok {
		return
	}

	var req passwordChangeRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	if err := h.passwords.ChangeCandidatePassword(r.Context(), p.ID, req.CurrentPassword, req.NewPassword); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MyApplications は自分の応募一覧を返す。
// GET /candidates/me/applications
func (h *CandidateHandler) MyApplications(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrReject(w, r)
	if !ok {
		return
	}

	apps, err := h.applications.ListForCandidate(r.Context(), p)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newApplicationList(apps))
}
