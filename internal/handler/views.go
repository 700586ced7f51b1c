package handler

import (
	"encoding/json"
	"time"

	"github.com/hitoshi/careerboard/internal/model"
)

// candidateResponse は求職者プロフィールのAPIレスポンス。
type candidateResponse struct {
	ID                  string          `json:"id"`
	Email               string          `json:"email"`
	FullName            string          `json:"full_name"`
	AuthOrigin          string          `json:"auth_origin"`
	AvatarURL           string          `json:"avatar_url,omitempty"`
	MobileNumber        string          `json:"mobile_number,omitempty"`
	Gender              string          `json:"gender,omitempty"`
	ExperienceLevel     string          `json:"experience_level,omitempty"`
	CTCExpected         *float64        `json:"ctc_expected,omitempty"`
	ProfessionalDetails json.RawMessage `json:"professional_details,omitempty"`
	Projects            json.RawMessage `json:"projects,omitempty"`
	Skills              json.RawMessage `json:"skills,omitempty"`
	Education           json.RawMessage `json:"education,omitempty"`
	Certifications      json.RawMessage `json:"certifications,omitempty"`
	Languages           json.RawMessage `json:"languages,omitempty"`
	ResumeURL           string          `json:"resume_url,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func newCandidateResponse(c *model.Candidate) candidateResponse {
	return candidateResponse{
		ID:                  c.ID,
		Email:               c.Email,
		FullName:            c.DisplayName,
		AuthOrigin:          string(c.AuthOrigin),
		AvatarURL:           c.AvatarURL,
		MobileNumber:        c.Profile.MobileNumber,
		Gender:              c.Profile.Gender,
		ExperienceLevel:     c.Profile.ExperienceLevel,
		CTCExpected:         c.Profile.CTCExpected,
		ProfessionalDetails: rawJSON(c.Profile.ProfessionalDetails),
		Projects:            rawJSON(c.Profile.Projects),
		Skills:              rawJSON(c.Profile.Skills),
		Education:           rawJSON(c.Profile.Education),
		Certifications:      rawJSON(c.Profile.Certifications),
		Languages:           rawJSON(c.Profile.Languages),
		ResumeURL:           c.Profile.ResumeURL,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

// rawJSON は保存済みのJSON文字列をそのまま返す。壊れた値は省略する。
func rawJSON(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return nil
	}
	return json.RawMessage(s)
}

// jobResponse は求人のAPIレスポンス。
type jobResponse struct {
	ID          string    `json:"id"`
	EmployerID  string    `json:"employer_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Skills      []string  `json:"skills"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func newJobResponse(j *model.Job) jobResponse {
	skills := j.Skills
	if skills == nil {
		skills = []string{}
	}
	return jobResponse{
		ID:          j.ID,
		EmployerID:  j.EmployerID,
		Title:       j.Title,
		Description: j.Description,
		Skills:      skills,
		Status:      string(j.Status),
		CreatedAt:   j.CreatedAt,
	}
}

// applicationResponse は応募のAPIレスポンス。
type applicationResponse struct {
	ID              string                 `json:"id"`
	JobID           string                 `json:"job_id"`
	CandidateID     string                 `json:"candidate_id"`
	Status          string                 `json:"status"`
	AppliedAt       time.Time              `json:"applied_at"`
	ProfileSnapshot *model.ProfileSnapshot `json:"profile_snapshot,omitempty"`
}

func newApplicationResponse(a *model.Application) applicationResponse {
	return applicationResponse{
		ID:              a.ID,
		JobID:           a.JobID,
		CandidateID:     a.CandidateID,
		Status:          string(a.Status),
		AppliedAt:       a.AppliedAt,
		ProfileSnapshot: a.ProfileSnapshot,
	}
}

func newApplicationList(apps []*model.Application) []applicationResponse {
	out := make([]applicationResponse, 0, len(apps))
	for _, a := range apps {
		out = append(out, newApplicationResponse(a))
	}
	return out
}
